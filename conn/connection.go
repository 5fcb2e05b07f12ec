package conn

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"xqmahjong/common/log"
)

// 单个 websocket 连接的生命周期：读写泵、心跳
// 消息为 JSON 文本帧，{tag, data} 信封

var (
	pongWait             = 60 * time.Second
	writeWait            = 10 * time.Second
	pingInterval         = (pongWait * 9) / 10
	maxMessageSize int64 = 4096
)

type LongConnection struct {
	ConnID     string
	Conn       *websocket.Conn
	manager    *Manager
	Session    *Session
	WriteChan  chan []byte
	pingTicker *time.Ticker
	closeChan  chan struct{}
	closeOnce  sync.Once
}

func newLongConnection(connID string, ws *websocket.Conn, m *Manager) *LongConnection {
	return &LongConnection{
		ConnID:    connID,
		Conn:      ws,
		manager:   m,
		Session:   NewSession(connID),
		WriteChan: make(chan []byte, 64),
		closeChan: make(chan struct{}),
	}
}

func (con *LongConnection) Run() {
	con.Conn.SetPongHandler(con.pongHandler)
	go con.readMessage()
	go con.writeMessage()
}

func (con *LongConnection) writeMessage() {
	con.pingTicker = time.NewTicker(pingInterval)
	defer con.manager.removeClient(con)

	for {
		select {
		case message, ok := <-con.WriteChan:
			if !ok {
				return
			}
			if err := con.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("客户端[%s] SetWriteDeadline err: %v", con.ConnID, err)
			}
			if err := con.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("客户端[%s] 写入失败: %v", con.ConnID, err)
				con.Close()
				return
			}
		case <-con.pingTicker.C:
			if err := con.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("客户端[%s] ping SetWriteDeadline err: %v", con.ConnID, err)
			}
			if err := con.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("客户端[%s] ping 失败: %v", con.ConnID, err)
				con.Close()
				return
			}
		case <-con.closeChan:
			return
		}
	}
}

func (con *LongConnection) readMessage() {
	defer con.manager.removeClient(con)

	con.Conn.SetReadLimit(maxMessageSize)
	if err := con.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error("客户端[%s] SetReadDeadline err: %v", con.ConnID, err)
		return
	}
	for {
		select {
		case <-con.closeChan:
			return
		default:
			messageType, message, err := con.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Warn("客户端[%s] 连接异常: %v", con.ConnID, err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				log.Warn("客户端[%s] 不支持的帧类型: %d", con.ConnID, messageType)
				continue
			}
			con.manager.dispatch(con, message)
		}
	}
}

func (con *LongConnection) pongHandler(string) error {
	return con.Conn.SetReadDeadline(time.Now().Add(pongWait))
}

// SendMessage 入写队列；队列满视作慢消费者，断开
func (con *LongConnection) SendMessage(buf []byte) {
	select {
	case con.WriteChan <- buf:
	case <-con.closeChan:
	default:
		log.Warn("客户端[%s] 写队列已满，断开连接", con.ConnID)
		con.Close()
	}
}

func (con *LongConnection) Close() {
	con.closeOnce.Do(func() {
		close(con.closeChan)
		if con.pingTicker != nil {
			con.pingTicker.Stop()
		}
		if con.Conn != nil {
			_ = con.Conn.Close()
		}
		log.Info("客户端[%s] 连接关闭", con.ConnID)
	})
}
