package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/cnst"
)

// heartbeatLoop probes the connection at a fixed interval. Idle TCP
// connections through proxies can die without a close frame; a failed probe
// write is the earliest reliable signal, and it triggers an immediate
// reconnect rather than the backoff path.
func (s *Session) heartbeatLoop(conn Conn, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			live := gen == s.gen && s.state == StateConnected
			stuck := !s.intentional && !s.closed &&
				s.state != StateConnected && s.state != StateConnecting
			s.mu.Unlock()
			if !live {
				if stuck {
					s.Connect()
				}
				return
			}

			ping := NewMessage(cnst.TypePing, nil)
			ping.MessageID = uuid.NewString()
			data, err := ping.MarshalJSON()
			if err != nil {
				s.logger.Error("marshal heartbeat", zap.Error(err))
				continue
			}
			if err := conn.Write(data); err != nil {
				s.logger.Warn("heartbeat probe failed", zap.Error(err))
				s.handleClose(gen, err)
				s.Connect()
				return
			}
			s.m.MessageSent(cnst.TypePing)
		}
	}
}
