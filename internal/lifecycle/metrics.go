package lifecycle

import (
	"errors"

	"github.com/containerd/errdefs"

	"librigo/internal/shared/domainerr"
	"librigo/internal/shared/model"
)

// 迁移结果标签
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // 业务规则拒绝（不可借、重复申请等）
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder 生命周期指标
type Recorder interface {
	RecordTransition(t Transition, outcome string)
	ObserveStats(stats *model.DashboardStats)
}

type noopRecorder struct{}

func (noopRecorder) RecordTransition(Transition, string) {}
func (noopRecorder) ObserveStats(*model.DashboardStats) {}

func outcomeOf(err error) string {
	var de *domainerr.Error
	switch {
	case err == nil:
		return OutcomeOK
	case !errors.As(err, &de):
		return OutcomeError
	case errdefs.IsNotFound(err):
		return OutcomeNotFound
	case errdefs.IsInternal(err):
		return OutcomeError
	default:
		return OutcomeRejected
	}
}
