package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/services"
	"github.com/wfunc/gamerisk/view"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. The Analytics service is
// registered by the caller during server wiring.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Analytics is the struct that exposes RPC methods. Every method follows
// the net/rpc signature: exported method, exported arguments, second
// argument a pointer, return type error.
type Analytics struct {
	service *services.AnalyticsService
}

// NewAnalytics creates the RPC surface over the analytics service.
func NewAnalytics(svc *services.AnalyticsService) *Analytics {
	return &Analytics{service: svc}
}

type AtRiskArgs struct {
	Rule string // 空串表示默认的 at_risk 规则
}

type AtRiskReply struct {
	Entries []view.Entry
}

func (a *Analytics) AtRisk(args *AtRiskArgs, reply *AtRiskReply) error {
	rule := args.Rule
	if rule == "" {
		rule = risk.RuleAtRisk
	}
	entries, err := a.service.AtRisk(context.Background(), rule)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

type RecordRiskArgs struct {
	ID   string
	Rule string
}

type RecordRiskReply struct {
	Verdict services.RecordVerdict
}

func (a *Analytics) RecordRisk(args *RecordRiskArgs, reply *RecordRiskReply) error {
	rule := args.Rule
	if rule == "" {
		rule = risk.RuleAtRisk
	}
	verdict, err := a.service.RecordRisk(context.Background(), args.ID, rule)
	if err != nil {
		return err
	}
	reply.Verdict = *verdict
	return nil
}

type TopByMetricArgs struct {
	Metric  string
	Percent float64
}

type TopByMetricReply struct {
	Standings []services.MetricStanding
}

func (a *Analytics) TopByMetric(args *TopByMetricArgs, reply *TopByMetricReply) error {
	standings, err := a.service.TopByMetric(context.Background(), models.Metric(args.Metric), args.Percent)
	if err != nil {
		return err
	}
	reply.Standings = standings
	return nil
}

type ImportRecordsArgs struct {
	Records []models.GamerRecord
}

type ImportRecordsReply struct {
	Imported int
}

// ImportRecords is the collaborator-side loading path: upstream batch
// jobs push validated records through here.
func (a *Analytics) ImportRecords(args *ImportRecordsArgs, reply *ImportRecordsReply) error {
	if err := a.service.ImportRecords(context.Background(), args.Records); err != nil {
		return err
	}
	reply.Imported = len(args.Records)
	return nil
}

type ExportReportsArgs struct {
	Dir string
}

type ExportReportsReply struct {
	Files []string
}

func (a *Analytics) ExportReports(args *ExportReportsArgs, reply *ExportReportsReply) error {
	files, err := a.service.ExportReports(context.Background(), args.Dir)
	if err != nil {
		return err
	}
	reply.Files = files
	return nil
}
