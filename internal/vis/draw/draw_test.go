package draw

import (
	"testing"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
)

func TestRoleColor(t *testing.T) {
	if RoleColor(core.RoleCarrier) != ColorCarrier || RoleColor(core.RoleRefueller) != ColorRefueller {
		t.Error("Expected role specific colors")
	}
	if RoleColor(core.RoleAny) != ColorAnyRole {
		t.Error("Expected any-role color")
	}
}

func TestChargeColor(t *testing.T) {
	empty, full := ChargeColor(0), ChargeColor(1)
	if empty.R != 255 || full.R != 0 || full.G != 255 {
		t.Errorf("Unexpected charge colors %v %v", empty, full)
	}
	if ChargeColor(2) != full || ChargeColor(-1) != empty {
		t.Error("Expected fractions clamped to [0, 1]")
	}
}

func TestHitTest(t *testing.T) {
	c := interact.NewCamera()
	pos := core.Pos{X: 1000}
	x, y := c.WorldToScreen(pos.X, pos.Y)
	if !HitTest(x+5, y-5, pos, c, 10) {
		t.Error("Expected hit inside radius")
	}
	if HitTest(x+20, y, pos, c, 10) {
		t.Error("Expected miss outside radius")
	}
}
