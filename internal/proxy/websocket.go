package proxy

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"uglink/internal/constants"
	"uglink/internal/session"
	"uglink/internal/utils"
)

// set by the dialer itself; passing them through is rejected as duplicates
var dialerManagedHeaders = []string{
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  constants.WSBufferSize,
	WriteBufferSize: constants.WSBufferSize,
	// the relay origin performs its own origin checks
	CheckOrigin: func(r *http.Request) bool { return true },
}

// forwardWebSocket dials the relay with the proxy's cookie, then upgrades the
// client and bridges frames in both directions until either side closes.
func (f *Forwarder) forwardWebSocket(w http.ResponseWriter, r *http.Request, cred session.ProxyCredential) {
	target := utils.WebSocketURL(utils.JoinOrigin(cred.Origin, r.URL))

	header := utils.FilterRequestHeaders(r.Header, false)
	for _, h := range dialerManagedHeaders {
		header.Del(h)
	}
	header.Set("Cookie", cred.Cookie)

	upstream, resp, err := f.dialer.DialContext(r.Context(), target, header)
	if err != nil {
		if resp != nil {
			// relay refused the upgrade; hand its answer back as-is
			defer resp.Body.Close()
			utils.CopyResponseHeaders(w.Header(), resp.Header)
			w.WriteHeader(resp.StatusCode)
			io.Copy(w, resp.Body)
			return
		}
		f.fail(w, r, err)
		return
	}

	respHeader := http.Header{}
	if p := upstream.Subprotocol(); p != "" {
		respHeader.Set("Sec-Websocket-Protocol", p)
	}

	client, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Printf("WebSocket: client upgrade failed: %v", err)
		upstream.Close()
		return
	}

	log.Printf("🔌 WebSocket: bridged %s", r.URL.Path)

	errc := make(chan error, 2)
	go pump(upstream, client, errc)
	go pump(client, upstream, errc)
	<-errc

	client.Close()
	upstream.Close()
	<-errc
}

// pump copies messages from src to dst. When src stops it relays the close
// status to dst.
func pump(dst, src *websocket.Conn, errc chan<- error) {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			code, text := websocket.CloseGoingAway, ""
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				code, text = ce.Code, ce.Text
			}
			dst.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
			errc <- err
			return
		}
		if err := dst.WriteMessage(messageType, message); err != nil {
			errc <- err
			return
		}
	}
}
