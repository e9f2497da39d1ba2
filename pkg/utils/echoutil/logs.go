package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc is a middleware logging one line per request and one
// per response, with status, latency and the handler error if any.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method
		url := c.Request().URL
		started := time.Now()
		c.Logger().Infof("< request %s %s", method, url)

		var err error
		defer func() {
			c.Logger().Infof(
				"> response status = %d for %s %s in %v / error = %+v",
				c.Response().Status, method, url, time.Since(started), err,
			)
		}()

		err = next(c)
		return err
	}
}

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// SetLevel applies a loglevel name to the echo logger.
// Empty means warn; unknown names fall back to warn with a notice.
func SetLevel(e *echo.Echo, loglevel string) {
	name := strings.ToLower(loglevel)
	if name == "" {
		name = "warn"
	}

	lvl, ok := logLevels[name]
	if !ok {
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
		return
	}
	e.Logger.SetLevel(lvl)
}
