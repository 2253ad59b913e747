package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline  = 5 * time.Second
	sendBufferSize = 16
)

// wireFrame is one queued transport write.
type wireFrame struct {
	messageType int
	data        []byte
}

// clientWriter owns all writes to a single WebSocket connection. The hub
// hands it frames through a buffered channel; a full channel means the peer
// is not draining and the hub treats that as a transport failure.
type clientWriter struct {
	connection  *websocket.Conn
	sendChannel chan wireFrame
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// newClientWriter starts the write pump. readDeadline must exceed the ping
// interval, or the deadline lapses before the first pong is ever requested.
// onPong is invoked from the read goroutine whenever the peer answers a ping.
func newClientWriter(connection *websocket.Conn, readDeadline time.Duration, onPong func()) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		sendChannel: make(chan wireFrame, sendBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.connection.SetPongHandler(func(string) error {
		_ = cw.connection.SetReadDeadline(time.Now().Add(readDeadline))
		if onPong != nil {
			onPong()
		}
		return nil
	})
	_ = cw.connection.SetReadDeadline(time.Now().Add(readDeadline))
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()
	for {
		select {
		case frame, ok := <-cw.sendChannel:
			if !ok {
				return
			}
			_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.connection.WriteMessage(frame.messageType, frame.data); err != nil {
				// Close so the read pump unblocks and triggers teardown.
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// send queues a text frame without blocking. Returns false if the buffer is
// full or the writer has stopped.
func (cw *clientWriter) send(data []byte) bool {
	select {
	case <-cw.doneChannel:
		return false
	default:
	}
	select {
	case cw.sendChannel <- wireFrame{messageType: websocket.TextMessage, data: data}:
		return true
	default:
		return false
	}
}

// ping queues a transport-level ping without blocking.
func (cw *clientWriter) ping() bool {
	select {
	case <-cw.doneChannel:
		return false
	default:
	}
	select {
	case cw.sendChannel <- wireFrame{messageType: websocket.PingMessage}:
		return true
	default:
		return false
	}
}

// stop tears the writer down without a close frame. Safe to call repeatedly
// and from multiple goroutines.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		// Signal the run goroutine to exit and wait for it, so the close
		// frame below is never a concurrent write.
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}
