package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"stopguard/internal/bot"
	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

var jsonFast = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub закрывает контракт broadcast-подписчика, объявленный ядром
var _ bot.MetricsBroadcaster = (*Hub)(nil)

// Буферы сериализации переиспользуются между broadcast'ами
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями дашборда.
//
// Центральная точка broadcast: guard-задачи публикуют свежие метрики
// и сигналы, hub рассылает их всем подключенным клиентам. Канал
// строго односторонний - от сервера к клиенту.
//
// Использование:
//  1. hub := NewHub(origins, logger)
//  2. go hub.Run(ctx)
//  3. hub.BroadcastGuardMetrics(metrics) из задач
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	logger *utils.Logger

	// Проверка Origin при upgrade; см. client.go
	allowedOrigins map[string]struct{}

	mu sync.RWMutex
}

// NewHub создает новый Hub.
// allowedOrigins - браузерные origins, которым разрешен upgrade;
// запросы без Origin (не из браузера) проходят всегда.
func NewHub(allowedOrigins []string, logger *utils.Logger) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		logger:         logger.WithComponent("websocket"),
		allowedOrigins: allowed,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине; завершается по контексту.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", utils.Int("total", total))

		case message := <-h.broadcast:
			// Список копируется под коротким RLock, отправка идет без
			// блокировки, чтобы не задерживать register/unregister
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.logger.Warn("removed slow clients",
					utils.Int("removed", len(toRemove)),
					utils.Int("total", total))
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast сериализует сообщение и рассылает всем клиентам.
// При переполненном broadcast-канале сообщение отбрасывается:
// потерянная сводка заменяется следующим проходом.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := jsonFast.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		h.logger.Warn("broadcast channel full, message dropped")
	}
}

// BroadcastGuardMetrics публикует свежую сводку guard-метрик
func (h *Hub) BroadcastGuardMetrics(metrics []*models.LimitSellOrderGuardMetrics) {
	h.Broadcast(NewGuardMetricsMessage(metrics))
}

// BroadcastSignal публикует обнаруженный рыночный сигнал
func (h *Hub) BroadcastSignal(signal *models.MarketSignal) {
	h.Broadcast(NewSignalMessage(signal))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
