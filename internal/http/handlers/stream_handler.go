// Live snapshot stream.
//
//   - GET /donations/stream  (Server-Sent Events)
//
// Each event is a complete replacement of the collection; clients discard
// their previous copy on every "snapshot" event. Idle streams carry a
// ": keep-alive" comment every heartbeat interval.
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamDonations godoc
// @ID          streamDonations
// @Summary     Subscribe to collection snapshots
// @Description Sends the current collection immediately and a full replacement after every change.
// @Tags        Donations
// @Produce     text/event-stream
// @Success     200  {object} live.Snapshot "event: snapshot"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/stream [get]
func (h *Handlers) StreamDonations(c *gin.Context) {
	ctx := c.Request.Context()
	snaps, err := h.snapshots.Subscribe(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStoreFailed, err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Streams are exempt from the server WriteTimeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	tick := time.NewTicker(h.heartbeat)
	defer tick.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, open := <-snaps:
			if !open {
				return false
			}
			c.SSEvent("snapshot", snap)
			tick.Reset(h.heartbeat)
			return true
		case <-tick.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}
