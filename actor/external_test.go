package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/geom"
)

func TestDOF_Constants(t *testing.T) {
	if FixedAll != 0x3F {
		t.Errorf("FixedAll = %#x, want 0x3f", FixedAll)
	}
	if TranslateDOF(geom.AxisZ) != ZTranslate || RotateDOF(geom.AxisY) != YRotate {
		t.Error("axis DOF helpers do not match the constants")
	}
}

func TestExternal_SetFixed(t *testing.T) {
	var e External

	e.SetFixed(XTranslate|ZTranslate, 0.01)
	if !e.IsFixed(XTranslate) || !e.IsFixed(ZTranslate) || e.IsFixed(YTranslate) {
		t.Errorf("Fixed = %06b", e.Fixed)
	}
	if e.Translation != (mgl64.Vec3{0.01, 0, 0.01}) {
		t.Errorf("Translation = %v", e.Translation)
	}
	if !e.IsFixedAnyTranslation() || e.IsFixedAllTranslation() || e.IsFixedAnyRotation() {
		t.Error("translation/rotation summaries are wrong")
	}

	e.SetFixed(RotateAll, 0)
	e.SetFixed(YTranslate, 0)
	if !e.IsFixedAll() {
		t.Error("every DOF should now be fixed")
	}

	e.Clear(XTranslate)
	if e.IsFixed(XTranslate) || e.Translation.X() != 0 {
		t.Errorf("Clear() left X fixed at %v", e.Translation.X())
	}
	if e.IsFixedAll() {
		t.Error("IsFixedAll() after Clear")
	}
}

func TestExternal_SetRotation(t *testing.T) {
	var e External
	e.SetRotation(mgl64.Vec3{0, 0, math.Pi / 2})

	if !e.IsFixedAllRotation() {
		t.Fatal("SetRotation should fix all rotations")
	}
	got := e.RotationQuat().Rotate(mgl64.Vec3{1, 0, 0})
	if !vec3Equal(got, mgl64.Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("RotationQuat() rotates X to %v, want {0 1 0}", got)
	}
}

func TestExternal_IsEmpty(t *testing.T) {
	var e External
	if !e.IsEmpty() {
		t.Error("zero External should be empty")
	}
	e.Force = mgl64.Vec3{0, 0, 1}
	if e.IsEmpty() {
		t.Error("External with a force should not be empty")
	}
	e.Reset()
	if !e.IsEmpty() {
		t.Error("Reset() should empty the External")
	}
}
