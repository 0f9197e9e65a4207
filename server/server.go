package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/gamerisk/broadcast"
	"github.com/wfunc/gamerisk/channel"
	"github.com/wfunc/gamerisk/config"
	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/monitor"
	"github.com/wfunc/gamerisk/network"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/rank"
	"github.com/wfunc/gamerisk/risk"
	gamerisk_rpc "github.com/wfunc/gamerisk/rpc"
	"github.com/wfunc/gamerisk/services"
	"github.com/wfunc/gamerisk/session"
	"github.com/wfunc/gamerisk/timer"
)

type RiskServer struct {
	addr           string
	upgrader       websocket.Upgrader
	channelManager *channel.Manager
	sessionManager *session.Manager
	service        *services.AnalyticsService
	broadcaster    broadcast.Broadcaster
	rpcServer      *gamerisk_rpc.Server
	monitor        *monitor.Monitor
	timers         *timer.Manager
	sessionTimeout time.Duration
	shutdownChan   chan struct{}
}

func NewRiskServer(cfg *config.Config, svc *services.AnalyticsService, mon *monitor.Monitor) *RiskServer {
	s := &RiskServer{
		addr:           cfg.Server.HTTPAddress,
		channelManager: channel.NewChannelManager(),
		sessionManager: session.NewManager(),
		service:        svc,
		monitor:        mon,
		timers:         timer.NewManager(),
		sessionTimeout: time.Duration(cfg.Feed.SessionTimeoutSeconds) * time.Second,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewFeedBroadcaster(s.channelManager, s.sessionManager)

	// 每条配置的规则一个推送频道
	refreshEvery := time.Duration(cfg.Feed.RefreshSeconds) * time.Second
	for _, rule := range svc.RuleNames() {
		v, ok := svc.View(rule)
		if !ok {
			continue
		}
		s.channelManager.CreateChannel(rule, cfg.Feed.MaxSubscribers, refreshEvery, v, s.broadcaster, mon)
	}

	// 初始化RPC服务器
	rpcServer, err := gamerisk_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	rpc.Register(gamerisk_rpc.NewAnalytics(svc))

	s.startJobs(cfg)

	return s
}

func (s *RiskServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/api/at-risk", s.handleAtRisk)
	http.HandleFunc("/api/top", s.handleTop)
	http.HandleFunc("/api/segments", s.handleSegments)
	http.HandleFunc("/api/record-risk", s.handleRecordRisk)
	http.HandleFunc("/api/stats", s.handleStats)

	logger.Log.Infof("Risk feed server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *RiskServer) Shutdown() {
	// 先告知所有在线会话
	data, _ := json.Marshal(map[string]string{"error": "server shutting down"})
	s.broadcaster.BroadcastToAll(network.MsgTypeError, data)

	close(s.shutdownChan)
	s.timers.Stop()
	s.channelManager.CloseAll()
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	s.rpcServer.Stop()
}

// startJobs 排入后台任务: 失活会话清理、监控指标同步、报表定时导出
func (s *RiskServer) startJobs(cfg *config.Config) {
	if s.sessionTimeout > 0 {
		s.timers.Schedule("session_reaper", s.sessionTimeout, s.sessionTimeout/2, func() {
			cutoff := time.Now().Add(-s.sessionTimeout)
			for _, sess := range s.sessionManager.All() {
				if sess.IdleSince().Before(cutoff) {
					logger.Log.Infof("Reaping idle session %s", sess.GetID())
					sess.Close()
				}
			}
		})
	}

	s.timers.Schedule("monitor_sync", 5*time.Second, 5*time.Second, func() {
		s.monitor.SetActiveChannels(s.channelManager.StreamingCount())
	})

	if cfg.Reports.IntervalHours > 0 {
		interval := time.Duration(cfg.Reports.IntervalHours) * time.Hour
		dir := cfg.Reports.Dir
		s.timers.Schedule("reports_export", interval, interval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.service.ExportReports(ctx, dir); err != nil {
				logger.Log.Errorf("Scheduled report export failed: %v", err)
			}
		})
	}
}

// --- websocket 实时推送 ---

func (s *RiskServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *RiskServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	if s.sessionTimeout > 0 {
		wsConn.SetHeartbeat(s.sessionTimeout / 2)
	}
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if name := sess.GetChannel(); name != "" {
			if ch, exists := s.channelManager.GetChannel(name); exists {
				ch.Unsubscribe(sess.GetID())
			}
			s.monitor.DecSubscribers()
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *RiskServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()
	s.monitor.IncPacketsReceived()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// Touch 已记录活跃时间
	case network.MsgTypeSubscribe:
		s.handleSubscribe(sess, packet)
	case network.MsgTypeUnsubscribe:
		s.handleUnsubscribe(sess, packet)
	case network.MsgTypeRefresh:
		s.handleRefresh(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *RiskServer) handleSubscribe(sess *session.Session, packet *network.Packet) {
	var req map[string]string
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "malformed subscribe payload")
		return
	}
	rule := req["rule"]

	ch, exists := s.channelManager.GetChannel(rule)
	if !exists {
		s.sendError(sess, fmt.Sprintf("unknown rule %q", rule))
		return
	}

	// 已订阅其他频道时先退订
	if current := sess.GetChannel(); current != "" && current != rule {
		if old, ok := s.channelManager.GetChannel(current); ok {
			old.Unsubscribe(sess.GetID())
		}
		s.monitor.DecSubscribers()
	}

	switch {
	case sess.GetChannel() == rule:
		// 重复订阅按成功处理
	case ch.Subscribe(sess):
		s.monitor.IncSubscribers()
	default:
		s.sendError(sess, fmt.Sprintf("channel %s is full", rule))
		return
	}

	logger.Log.Infof("Session %s subscribed to channel %s", sess.GetID(), rule)

	resp := map[string]string{"rule": rule}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeSubscribe, data)

	// 立刻给新订阅者推一帧，不等下一个刷新周期
	if snap, err := ch.Snapshot(); err == nil {
		sess.Send(network.MsgTypeSnapshot, snap)
	}
}

func (s *RiskServer) handleUnsubscribe(sess *session.Session, packet *network.Packet) {
	name := sess.GetChannel()
	if name == "" {
		return
	}
	if ch, exists := s.channelManager.GetChannel(name); exists {
		ch.Unsubscribe(sess.GetID())
	}
	s.monitor.DecSubscribers()
	logger.Log.Infof("Session %s unsubscribed from channel %s", sess.GetID(), name)

	resp := map[string]string{"rule": name}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeUnsubscribe, data)
}

func (s *RiskServer) handleRefresh(sess *session.Session, packet *network.Packet) {
	name := sess.GetChannel()
	if name == "" {
		logger.Log.Warnf("Session %s sent a refresh but is not subscribed", sess.GetID())
		s.sendError(sess, "not subscribed")
		return
	}

	ch, exists := s.channelManager.GetChannel(name)
	if !exists {
		logger.Log.Errorf("Channel %s not found for session %s", name, sess.GetID())
		return
	}

	currentState := ch.StateMachine.GetCurrentState()
	if currentState == nil {
		logger.Log.Errorf("Channel %s has a nil state", ch.GetID())
		return
	}

	if err := currentState.HandleCommand(sess, packet.Data); err != nil {
		logger.Log.Errorf("Error handling command on channel %s: %v", ch.GetID(), err)
	}
}

func (s *RiskServer) sendError(sess *session.Session, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	sess.Send(network.MsgTypeError, data)
}

// --- HTTP JSON API，只读 ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeAPIError 把引擎错误翻译成合适的状态码
func (s *RiskServer) writeAPIError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownRule), errors.Is(err, persistence.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, rank.ErrInvalidPercentile), errors.Is(err, models.ErrUnknownMetric):
		writeError(w, http.StatusBadRequest, err)
	default:
		logger.Log.Errorf("API error: %v", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *RiskServer) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rule := r.URL.Query().Get("rule")
	if rule == "" {
		rule = risk.RuleAtRisk
	}

	entries, err := s.service.AtRisk(r.Context(), rule)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rule":    rule,
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *RiskServer) handleTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = string(models.MetricMonthlySpending)
	}
	k := 5.0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad percentile %q", raw))
			return
		}
		k = parsed
	}

	standings, err := s.service.TopByMetric(r.Context(), models.Metric(metric), k)
	if err != nil {
		// 空人群不是客户端的错，返回空榜
		if errors.Is(err, rank.ErrEmptyPopulation) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"metric":    metric,
				"k":         k,
				"standings": []services.MetricStanding{},
			})
			return
		}
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":    metric,
		"k":         k,
		"standings": standings,
	})
}

func (s *RiskServer) handleSegments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	breakdown, err := s.service.SegmentCounts(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *RiskServer) handleRecordRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing id"))
		return
	}
	rule := r.URL.Query().Get("rule")
	if rule == "" {
		rule = risk.RuleAtRisk
	}

	verdict, err := s.service.RecordRisk(r.Context(), id, rule)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *RiskServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.service.PopulationOverview(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
