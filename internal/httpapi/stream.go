package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAlive is how often an idle stream gets a comment line so proxies
// keep the connection open.
const keepAlive = 25 * time.Second

// feed streams snapshots of a live collection as server-sent events.
// Every event carries the whole collection.
func (s *server) feed(c *gin.Context) {
	updates, errs, err := s.Feeds.Watch(c.Request.Context(), c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	openStream(c)
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", u)
			return true
		case err, ok := <-errs:
			if ok && err != nil {
				_ = c.Error(err)
				c.SSEvent("error", gin.H{"error": "live feed interrupted"})
			}
			return false
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// events streams service events (completed imports, placed orders).
func (s *server) events(c *gin.Context) {
	if s.Events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event stream disabled"})
		return
	}
	ch := s.Events.Subscribe(c.Request.Context())

	openStream(c)
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// openStream sends the event-stream headers before the first event.
func openStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}
