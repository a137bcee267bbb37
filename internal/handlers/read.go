package handlers

import (
	"context"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

const highReadVolumeThreshold = 50

// ReadHandler implements spec 4.10.4's three-tier classification.
type ReadHandler struct {
	Config  Config
	Session *session.State
}

func (h ReadHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "Read")
	count := readCount(h.Session)

	path := req.FilePath()

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, path)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	switch ClassifyReadPath(path) {
	case ReadTierBlock:
		return req, router.HandlerVerdict{Blocked: true, Reason: "read targets a tier-1 protected file"}, nil
	case ReadTierWarn:
		return req, h.Config.verdict(SeverityWarn, "read targets a sensitive file"), nil
	}

	if IsDatabaseFile(path) {
		h.Session.TrackEvent("Read_operation", "database_file")
	}

	if int(count) > highReadVolumeThreshold {
		return req, h.Config.verdict(SeverityWarn, "high read volume this session"), nil
	}

	return req, ruleVerdict, nil
}
