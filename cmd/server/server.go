package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/metrics"
	"github.com/jeffypooo/apptop/internal/refresh"
	"github.com/jeffypooo/apptop/internal/web"
)

type hostSource interface {
	Host(ctx context.Context) (metrics.Host, error)
	BootTime(ctx context.Context) (time.Time, error)
}

type server struct {
	orch *refresh.Orchestrator
	host hostSource
}

func newEcho(s *server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.GET("/", s.rootHandler)
	e.GET("/api/apps", s.apiAppsHandler)
	e.GET("/api/apps/sse", s.apiAppsSSEHandler)
	e.GET("/api/apps/:id", s.apiAppHandler)
	e.GET("/api/processes", s.apiProcessesHandler)
	e.GET("/api/processes/:pid", s.apiProcessHandler)
	e.StaticFS("/static", echo.MustSubFS(web.Static, "static"))
	e.POST("/api/apps/:id/:action", s.apiActionHandler)
	return e
}

func (s *server) rootHandler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	return web.Index(c.QueryParam("selected")).Render(c.Request().Context(), c.Response().Writer)
}

type appsResponse struct {
	Refresh   string                `json:"refresh,omitempty"`
	Summaries []apps.DisplaySummary `json:"summaries"`
}

func (s *server) apiAppsHandler(c echo.Context) error {
	last := s.orch.Last()
	resp := appsResponse{Summaries: s.orch.Summaries()}
	if last.ID != uuid.Nil {
		resp.Refresh = last.ID.String()
	}
	if resp.Summaries == nil {
		resp.Summaries = []apps.DisplaySummary{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *server) bootTime(ctx context.Context) (time.Time, error) {
	if s.host == nil {
		return time.Time{}, nil
	}
	return s.host.BootTime(ctx)
}

func (s *server) apiAppHandler(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, actionResponse{Error: err.Error()})
	}
	app, err := s.orch.Resolve(web.IDFromKey(key))
	if err != nil {
		return c.JSON(http.StatusNotFound, actionResponse{Error: err.Error()})
	}
	boot, err := s.bootTime(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, actionResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, app.Info(boot))
}

func (s *server) apiProcessesHandler(c echo.Context) error {
	boot, err := s.bootTime(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, actionResponse{Error: err.Error()})
	}
	records := s.orch.Processes()
	out := make([]apps.ProcessInfo, 0, len(records))
	for _, r := range records {
		out = append(out, apps.NewProcessInfo(r, boot))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) apiProcessHandler(c echo.Context) error {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, actionResponse{Error: fmt.Sprintf("invalid pid %q", c.Param("pid"))})
	}
	r, ok := s.orch.Process(int32(pid))
	if !ok {
		return c.JSON(http.StatusNotFound, actionResponse{Error: fmt.Sprintf("no process with pid %d", pid)})
	}
	boot, err := s.bootTime(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, actionResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, apps.NewProcessInfo(r, boot))
}

func (s *server) apiAppsSSEHandler(c echo.Context) error {
	c.Logger().Debugf("SSE request received from %s", c.Request().RemoteAddr)
	selected := c.QueryParam("selected")

	events := s.orch.Subscribe()
	if events == nil {
		return c.String(http.StatusServiceUnavailable, "shutting down")
	}
	defer s.orch.Unsubscribe(events)
	c.Logger().Debugf("SSE client subscribed, %d connected", s.orch.Subscribers())

	// Set headers for SSE
	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(resp.Writer, "event: connected\ndata: Connected to application stream\n\n")
	resp.Flush()

	ctx := c.Request().Context()

	if last := s.orch.Last(); last.ID != uuid.Nil {
		if err := s.sendEvent(ctx, resp, last, selected); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.Logger().Debug("Client disconnected (context done)")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.sendEvent(ctx, resp, ev, selected); err != nil {
				c.Logger().Debugf("Error sending update: %v", err)
				return nil
			}
		}
	}
}

func (s *server) sendEvent(ctx context.Context, resp *echo.Response, ev refresh.Event, selected string) error {
	if ev.Failed() {
		if _, err := fmt.Fprintf(resp.Writer, "event: refresh-failed\nid: %s\ndata: %s\n\n", ev.ID, oneLine("Refresh failed: "+ev.Err.Error())); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	if s.host != nil {
		h, err := s.host.Host(ctx)
		if err != nil {
			fmt.Fprintf(resp.Writer, "event: error\ndata: %s\n\n", oneLine(err.Error()))
		} else if err := writeComponent(ctx, resp, "host", ev.ID, web.HostDisplay(h)); err != nil {
			return err
		}
	}

	// positions move between refreshes; follow the selection by identity
	if selected != "" && apps.IndexOf(ev.Summaries, web.IDFromKey(selected)) < 0 {
		selected = ""
	}
	if err := writeComponent(ctx, resp, "apps", ev.ID, web.AppTable(ev.Summaries, selected)); err != nil {
		return err
	}
	if err := s.writeDetail(ctx, resp, ev.ID, selected); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

// writeDetail sends the member list of the selected application, or an
// empty detail event when nothing is selected.
func (s *server) writeDetail(ctx context.Context, resp *echo.Response, id uuid.UUID, selected string) error {
	var app *apps.Application
	if selected != "" {
		app, _ = s.orch.Resolve(web.IDFromKey(selected))
	}
	if app == nil {
		_, err := fmt.Fprintf(resp.Writer, "event: detail\nid: %s\ndata: \n\n", id)
		return err
	}
	boot, err := s.bootTime(ctx)
	if err != nil {
		fmt.Fprintf(resp.Writer, "event: error\ndata: %s\n\n", oneLine(err.Error()))
	}
	return writeComponent(ctx, resp, "detail", id, web.AppDetail(app.Info(boot)))
}

// writeComponent renders c as one SSE event. The HTML is flattened to a
// single data line.
func writeComponent(ctx context.Context, resp *echo.Response, event string, id uuid.UUID, c templ.Component) error {
	var buf strings.Builder
	if err := c.Render(ctx, &buf); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := fmt.Fprintf(resp.Writer, "event: %s\nid: %s\ndata: %s\n\n", event, id, oneLine(buf.String()))
	return err
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

type actionResponse struct {
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	Tried     int      `json:"tried"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (s *server) apiActionHandler(c echo.Context) error {
	act, err := action.ParseAction(c.Param("action"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, actionResponse{Error: err.Error()})
	}
	key, err := url.PathUnescape(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, actionResponse{Error: err.Error()})
	}
	app, err := s.orch.Resolve(web.IDFromKey(key))
	if err != nil {
		return c.JSON(http.StatusNotFound, actionResponse{Error: err.Error()})
	}
	if app.IsSystem() {
		return c.JSON(http.StatusConflict, actionResponse{Error: apps.ErrSystemBucket.Error()})
	}

	o := apps.Tally(app, act, app.Do(act))
	resp := actionResponse{Message: o.Message(), Tried: o.Tried, Succeeded: o.Succeeded, Failed: o.Failed}
	for _, err := range o.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	if !o.OK() {
		c.Logger().Warnf("%s: %v", o.Message(), errors.Join(o.Errors...))
		return c.JSON(http.StatusInternalServerError, resp)
	}
	c.Logger().Infof("%s (pids %v)", o.Message(), app.PIDs())
	return c.JSON(http.StatusOK, resp)
}
