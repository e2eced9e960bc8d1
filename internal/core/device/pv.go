package device

import (
	"fmt"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/pkg/s2"
)

const PVConstraintsID = s2.ID("pv-power-constraints")

// PVConstraintsModel builds the PEBC capability of a PV installation: its
// production can be curtailed anywhere down to zero and never forced.
func PVConstraintsModel(cfg PVConfig) (*capability.PEBCModel, error) {
	if cfg.PeakPowerW <= 0 {
		return nil, fmt.Errorf("pv peak power must be positive, got %g", cfg.PeakPowerW)
	}
	return capability.NewPEBCModel(capability.PEBCConfig{
		ConstraintsID:     PVConstraintsID,
		CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
		UpperLimitRange:   capability.Range{Start: 0, End: 0},
		LowerLimitRange:   capability.Range{Start: -cfg.PeakPowerW, End: 0},
		ConsequenceType:   s2.ConsequenceTypeVanish,
	})
}
