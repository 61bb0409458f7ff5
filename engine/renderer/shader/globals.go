package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

// GlobalPrefix marks a uniform member the engine fills every draw instead of the user.
const GlobalPrefix = "g_"

// GlobalType identifies one engine-supplied uniform value.
type GlobalType int

const (
	GlobalNone GlobalType = iota
	GlobalAppTime
	GlobalChartTime
	GlobalProjectionFromModel
	GlobalLightProjectionFromModel
	GlobalLightProjectionFromWorld
	GlobalProjectionFromCamera
	GlobalProjectionFromWorld
	GlobalCameraFromModel
	GlobalCameraFromWorld
	GlobalWorldFromModel
	GlobalInstanceCount
	GlobalPixelSize
	GlobalAspectRatio
	GlobalZNear
	GlobalFieldOfView
	GlobalLightDirWorldspaceNorm
	GlobalLightDirCamspaceNorm
	GlobalShadowMapSize
	GlobalSimulationFrameRatio
	GlobalSimulationStepSeconds
)

type globalInfo struct {
	name string
	typ  Type
}

var globalTable = map[GlobalType]globalInfo{
	GlobalAppTime:                  {"app_time", TypeFloat},
	GlobalChartTime:                {"chart_time", TypeFloat},
	GlobalProjectionFromModel:      {"projection_from_model", TypeMat4},
	GlobalLightProjectionFromModel: {"light_projection_from_model", TypeMat4},
	GlobalLightProjectionFromWorld: {"light_projection_from_world", TypeMat4},
	GlobalProjectionFromCamera:     {"projection_from_camera", TypeMat4},
	GlobalProjectionFromWorld:      {"projection_from_world", TypeMat4},
	GlobalCameraFromModel:          {"camera_from_model", TypeMat4},
	GlobalCameraFromWorld:          {"camera_from_world", TypeMat4},
	GlobalWorldFromModel:           {"world_from_model", TypeMat4},
	GlobalInstanceCount:            {"instance_count", TypeFloat},
	GlobalPixelSize:                {"pixel_size", TypeVec2},
	GlobalAspectRatio:              {"aspect_ratio", TypeFloat},
	GlobalZNear:                    {"z_near", TypeFloat},
	GlobalFieldOfView:              {"field_of_view", TypeFloat},
	GlobalLightDirWorldspaceNorm:   {"light_dir_worldspace_norm", TypeVec3},
	GlobalLightDirCamspaceNorm:     {"light_dir_camspace_norm", TypeVec3},
	GlobalShadowMapSize:            {"shadow_map_size", TypeFloat},
	GlobalSimulationFrameRatio:     {"simulation_frame_ratio", TypeFloat},
	GlobalSimulationStepSeconds:    {"simulation_step_seconds", TypeFloat},
}

var globalsByName = func() map[string]GlobalType {
	m := make(map[string]GlobalType, len(globalTable))
	for g, info := range globalTable {
		m[info.name] = g
	}
	return m
}()

// String returns the member suffix of the global, without the prefix.
func (g GlobalType) String() string {
	if info, ok := globalTable[g]; ok {
		return info.name
	}
	return "none"
}

// Type returns the uniform type the global is written as.
func (g GlobalType) Type() Type {
	return globalTable[g].typ
}

// Globals returns every known global in declaration order.
func Globals() []GlobalType {
	out := make([]GlobalType, 0, len(globalTable))
	for g := GlobalAppTime; g <= GlobalSimulationStepSeconds; g++ {
		out = append(out, g)
	}
	return out
}

// ParseGlobal resolves a prefixed member name such as "g_app_time" to its global.
//
// Parameters:
//   - member: the uniform member name including the prefix
//
// Returns:
//   - GlobalType: the resolved global
//   - error: common.ErrUnknownGlobal if the suffix names no known global
func ParseGlobal(member string) (GlobalType, error) {
	g, ok := globalsByName[strings.TrimPrefix(member, GlobalPrefix)]
	if !ok || !strings.HasPrefix(member, GlobalPrefix) {
		return GlobalNone, fmt.Errorf("member %q: %w", member, common.ErrUnknownGlobal)
	}
	return g, nil
}
