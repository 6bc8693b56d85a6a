package cli

import (
	"database/sql"
	"fmt"

	"github.com/SpecFarm/SpecFarm/internal/capability"
	"github.com/SpecFarm/SpecFarm/internal/config"
	"github.com/SpecFarm/SpecFarm/internal/feedback"
	"github.com/SpecFarm/SpecFarm/internal/governance"
	"github.com/SpecFarm/SpecFarm/internal/registry"
	"github.com/SpecFarm/SpecFarm/internal/retrieval"
	"github.com/SpecFarm/SpecFarm/internal/store"
)

// services wires the full registry stack for one command invocation.
type services struct {
	cfg  *config.Config
	caps capability.Set
	db   *sql.DB

	registry  *registry.Service
	feedback  *feedback.Service
	retrieval *retrieval.Service
	orgs      *governance.Store
	audit     *governance.Ledger
	approvals *governance.ApprovalManager
	engine    *governance.Engine
	calls     *governance.CallService
}

func openServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	s := &services{
		cfg:  cfg,
		caps: capability.FromConfig(cfg),
		db:   db,
	}
	s.registry = registry.NewService(db)
	s.feedback = feedback.NewService(db, feedback.Thresholds{
		SuccessScore:              cfg.Registry.SuccessScore,
		ImprovementMinUsage:       cfg.Registry.ImprovementMinUsage,
		ImprovementMaxSuccessRate: cfg.Registry.ImprovementMaxSuccessRate,
		LearningConfidenceFloor:   cfg.Registry.LearningConfidenceFloor,
	})
	s.retrieval = retrieval.NewService(db, s.caps.VectorSimilarity)
	s.orgs = governance.NewStore(db)
	s.audit = governance.NewLedger(db)
	s.approvals = governance.NewApprovalManager(db, s.audit)
	s.engine = governance.NewEngine(s.orgs, s.approvals, s.audit)
	s.calls = governance.NewCallService(db, s.engine)
	return s, nil
}

func (s *services) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
