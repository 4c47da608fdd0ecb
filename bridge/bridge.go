// Package bridge relays a project's replication byte-stream over a websocket
// connection. It is a raw pipe: no framing, no interpretation, no resumption.
// Replication state lives entirely inside the engine.
package bridge

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/coder/websocket"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
	"github.com/digidem/comapeo-cloud/log"
)

type Bridge struct {
	engine comapeo.Engine
	logger log.Logger
}

func New(engine comapeo.Engine, logger log.Logger) *Bridge {
	return &Bridge{
		engine: engine,
		logger: logger,
	}
}

// ServeSync handles an inbound sync session for the project with the given
// public id. The project is resolved before the transport upgrade, so an
// unknown project still gets a regular HTTP error response. Once upgraded,
// bytes flow both ways until either side closes; closing one side tears down
// the other.
func (b *Bridge) ServeSync(w http.ResponseWriter, r *http.Request, publicID string) error {
	project, err := b.engine.Project(r.Context(), publicID)
	if err != nil {
		if stderrors.Is(err, comapeo.ErrProjectNotFound) {
			return errors.New("project not found", errors.ProjectNotFound())
		}
		return err
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		// Accept has already written its own response.
		b.logger.Errorf("websocket accept: %v", err)
		return nil
	}

	stream, err := project.Replicate(r.Context())
	if err != nil {
		b.logger.Errorf("replication stream for %s: %v", publicID, err)
		conn.Close(websocket.StatusInternalError, "replication unavailable")
		return nil
	}

	ctx := r.Context()
	ws := websocket.NetConn(ctx, conn, websocket.MessageBinary)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(stream, ws)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(ws, stream)
		done <- struct{}{}
	}()

	if err := project.StartSync(ctx); err != nil {
		b.logger.Errorf("sync start for %s: %v", publicID, err)
	}

	b.logger.Printf("sync session open for project %s", publicID)

	<-done
	stream.Close()
	conn.Close(websocket.StatusNormalClosure, "")
	<-done

	b.logger.Printf("sync session closed for project %s", publicID)
	return nil
}
