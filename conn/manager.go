package conn

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"xqmahjong/common/log"
)

// Envelope JSON 信封：{tag, data}
type Envelope struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HandlerFunc 按 tag 注册的业务处理器
type HandlerFunc func(s *Session, data json.RawMessage)

// Manager 连接管理器：升级、会话索引、分发、推送
type Manager struct {
	upgrader     websocket.Upgrader
	handlerMu    sync.RWMutex
	handlers     map[string]HandlerFunc
	onDisconnect func(s *Session)
	connMap      sync.Map // connID -> *LongConnection
}

func NewManager() *Manager {
	return &Manager{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		handlers: make(map[string]HandlerFunc),
	}
}

// RegisterHandler 注册 tag 处理器（启动期调用）
func (m *Manager) RegisterHandler(tag string, h HandlerFunc) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handlers[tag] = h
}

// SetOnDisconnect 连接断开回调（离线托管入口）
func (m *Manager) SetOnDisconnect(fn func(s *Session)) {
	m.onDisconnect = fn
}

// Run 启动 websocket 服务，阻塞
func (m *Manager) Run(addr string) error {
	http.HandleFunc("/ws", m.upgradeFunc)
	log.Info("websocket 服务启动: %s/ws", addr)
	return http.ListenAndServe(addr, nil)
}

func (m *Manager) upgradeFunc(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket 升级失败: %v", err)
		return
	}
	connID := uuid.NewString()
	client := newLongConnection(connID, ws, m)
	m.connMap.Store(connID, client)
	client.Run()
	log.Debug("websocket 连接建立: cid=%s remote=%s", connID, r.RemoteAddr)
}

func (m *Manager) removeClient(con *LongConnection) {
	if _, loaded := m.connMap.LoadAndDelete(con.ConnID); !loaded {
		return
	}
	con.Close()
	if m.onDisconnect != nil {
		m.onDisconnect(con.Session)
	}
}

// dispatch 解析信封并路由到处理器
func (m *Manager) dispatch(con *LongConnection, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn("客户端[%s] 消息格式错误: %v", con.ConnID, err)
		m.Push(con.ConnID, "lobbyError", map[string]string{"text": "消息格式错误"})
		return
	}

	m.handlerMu.RLock()
	handler, exists := m.handlers[env.Tag]
	m.handlerMu.RUnlock()
	if !exists {
		log.Warn("客户端[%s] 未知消息 tag: %s", con.ConnID, env.Tag)
		m.Push(con.ConnID, "lobbyError", map[string]string{"text": "未知消息类型"})
		return
	}
	handler(con.Session, env.Data)
}

// Push 向指定连接推送一条消息
func (m *Manager) Push(connID, tag string, payload any) {
	v, ok := m.connMap.Load(connID)
	if !ok {
		log.Debug("推送目标不在线: %s tag=%s", connID, tag)
		return
	}
	con := v.(*LongConnection)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("推送编码失败 tag=%s: %v", tag, err)
		return
	}
	buf, err := json.Marshal(Envelope{Tag: tag, Data: data})
	if err != nil {
		log.Error("推送打包失败 tag=%s: %v", tag, err)
		return
	}
	con.SendMessage(buf)
}

// EachSession 遍历所有在线会话（大厅广播用）
func (m *Manager) EachSession(fn func(s *Session)) {
	m.connMap.Range(func(_, v any) bool {
		fn(v.(*LongConnection).Session)
		return true
	})
}

// SessionName 查询会话的展示名
func (m *Manager) SessionName(connID string) (string, bool) {
	v, ok := m.connMap.Load(connID)
	if !ok {
		return "", false
	}
	return v.(*LongConnection).Session.GetName(), true
}
