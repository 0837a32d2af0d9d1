package app

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/report"

	"github.com/labstack/echo/v4"
	"github.com/vmkteam/appkit"
)

// runHTTPServer is a function that starts http listener using labstack/echo.
func (a *App) runHTTPServer(ctx context.Context, host string, port int) error {
	listenAddress := fmt.Sprintf("%s:%d", host, port)
	addr := "http://" + listenAddress
	a.Print(ctx, "starting http listener", "url", addr)

	return a.echo.Start(listenAddress)
}

// registerHandlers register echo handlers.
func (a *App) registerHandlers() {
	a.echo.GET("/api/ledger/:id/records.csv", a.ledgerCSVHandler)
}

// ledgerCSVHandler streams ledger records as a CSV download. Links to it are
// issued by the bot after query and export replies.
func (a *App) ledgerCSVHandler(c echo.Context) error {
	ctx := c.Request().Context()

	ledgerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid ledger id")
	}

	start, end, err := csvRange(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	records, err := a.books.RecordsInRange(ctx, ledgerID, start, end)
	if err != nil {
		a.Error(ctx, "failed to load records for csv", "ledgerId", ledgerID, "err", err)
		return c.String(http.StatusInternalServerError, "DB error")
	}

	data, err := report.CSV(records)
	if err != nil {
		a.Error(ctx, "failed to render csv", "ledgerId", ledgerID, "err", err)
		return c.String(http.StatusInternalServerError, "render error")
	}

	filename := fmt.Sprintf("ledger-%d-%s-%s.csv", ledgerID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// csvRange reads either start/end dates or year/month from the query.
func csvRange(c echo.Context) (start, end time.Time, err error) {
	if y := c.QueryParam("year"); y != "" {
		year, err1 := strconv.Atoi(y)
		month, err2 := strconv.Atoi(c.QueryParam("month"))
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			return start, end, fmt.Errorf("invalid year/month")
		}
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	}

	start, err = time.Parse(time.DateOnly, c.QueryParam("start"))
	if err != nil {
		return start, end, fmt.Errorf("invalid start date")
	}
	end, err = time.Parse(time.DateOnly, c.QueryParam("end"))
	if err != nil {
		return start, end, fmt.Errorf("invalid end date")
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end before start")
	}
	return start, end, nil
}

// registerDebugHandlers adds /debug/pprof handlers into a.echo instance.
func (a *App) registerDebugHandlers() {
	dbg := a.echo.Group("/debug")

	// add pprof integration
	dbg.Any("/pprof/*", appkit.PprofHandler)

	// add healthcheck
	a.echo.GET("/status", func(c echo.Context) error {
		// test postgresql connection
		err := a.db.Ping(c.Request().Context())
		if err != nil {
			a.Error(c.Request().Context(), "failed to check db connection", "err", err)
			return c.String(http.StatusInternalServerError, "DB error")
		}
		return c.String(http.StatusOK, "OK")
	})

	// show all routes in devel mode
	if a.cfg.Server.IsDevel {
		a.echo.GET("/", appkit.RenderRoutes(a.appName, a.echo))
	}
}
