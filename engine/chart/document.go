package chart

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a chart document from disk.
// Relative shader paths are resolved against the document's directory.
//
// Parameters:
//   - path: the chart document path
//
// Returns:
//   - *Chart: the parsed and validated chart
//   - error: a ClassFatal error if the file cannot be read, decoded or validated
func Load(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Fatal("load chart", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c, err := Parse(data, id, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	c.Path = path
	return c, nil
}

// Parse decodes a chart document.
//
// Parameters:
//   - data: the YAML document
//   - id: the chart id
//   - dir: directory that relative shader paths are joined to
//
// Returns:
//   - *Chart: the parsed and validated chart
//   - error: a ClassFatal error describing the first problem found
func Parse(data []byte, id, dir string) (*Chart, error) {
	var doc chartDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, common.Fatal("parse chart", id, fmt.Errorf("%w: %v", common.ErrInvalidChart, err))
	}

	c, err := doc.toChart(id, dir)
	if err != nil {
		return nil, common.Fatal("parse chart", id, fmt.Errorf("%w: %v", common.ErrInvalidChart, err))
	}
	warnings, err := Validate(c)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		common.Logger().Warn("chart", "chart", id, "warning", w)
	}
	return c, nil
}

type chartDoc struct {
	Images   []imageDoc   `yaml:"images"`
	Buffers  []bufferDoc  `yaml:"buffers"`
	Steps    []stepDoc    `yaml:"steps"`
	Camera   *cameraDoc   `yaml:"camera"`
	Light    *lightDoc    `yaml:"light"`
	Controls []controlDoc `yaml:"controls"`
}

type controlDoc struct {
	Target     string       `yaml:"target"`
	Uniform    string       `yaml:"uniform"`
	Components [][]pointDoc `yaml:"components"`
}

type pointDoc struct {
	Time   float32 `yaml:"time"`
	Value  float32 `yaml:"value"`
	Linear bool    `yaml:"linear"`
}

func (c controlDoc) toControl() control.Control {
	out := control.Control{Target: c.Target, Uniform: c.Uniform, Components: make([]control.Spline, len(c.Components))}
	for i, points := range c.Components {
		for _, p := range points {
			out.Components[i].Points = append(out.Components[i].Points, control.Point{Time: p.Time, Value: p.Value, Linear: p.Linear})
		}
	}
	return out
}

type imageDoc struct {
	ID      string  `yaml:"id"`
	Format  string  `yaml:"format"`
	Size    sizeDoc `yaml:"size"`
	Mipmaps bool    `yaml:"mipmaps"`
}

type sizeDoc struct {
	Canvas *float32 `yaml:"canvas"`
	Fixed  []int    `yaml:"fixed"`
	At4k   []int    `yaml:"at4k"`
	MipOf  string   `yaml:"mip_of"`
	Level  int      `yaml:"level"`
}

type bufferDoc struct {
	ID             string `yaml:"id"`
	ItemSizeInVec4 int    `yaml:"item_size_in_vec4"`
	ItemCount      int    `yaml:"item_count"`
}

type stepDoc struct {
	Draw              *drawDoc    `yaml:"draw"`
	Compute           *computeDoc `yaml:"compute"`
	GenerateMipLevels *mipDoc     `yaml:"generate_mip_levels"`
}

type drawDoc struct {
	ID      string      `yaml:"id"`
	Passes  []passDoc   `yaml:"passes"`
	Objects []objectDoc `yaml:"objects"`
}

type passDoc struct {
	ID         string      `yaml:"id"`
	Depth      *targetDoc  `yaml:"depth"`
	Color      []targetDoc `yaml:"color"`
	ClearColor *colorDoc   `yaml:"clear_color"`
	Clear      *bool       `yaml:"clear"`
}

// targetDoc accepts either a bare image id or {image, level}.
type targetDoc struct {
	Image string `yaml:"image"`
	Level int    `yaml:"level"`
}

func (t *targetDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&t.Image)
	}
	type plain targetDoc
	return value.Decode((*plain)(t))
}

// colorDoc accepts [r, g, b, a] in linear space or a "#rrggbb" sRGB hex string.
type colorDoc common.Color

func (c *colorDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var hex string
		if err := value.Decode(&hex); err != nil {
			return err
		}
		col, err := colorful.Hex(hex)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		r, g, b := col.LinearRgb()
		*c = colorDoc{float32(r), float32(g), float32(b), 1}
		return nil
	}
	var vals []float32
	if err := value.Decode(&vals); err != nil {
		return err
	}
	switch len(vals) {
	case 3:
		*c = colorDoc{vals[0], vals[1], vals[2], 1}
	case 4:
		*c = colorDoc{vals[0], vals[1], vals[2], vals[3]}
	default:
		return fmt.Errorf("line %d: color needs 3 or 4 components, got %d", value.Line, len(vals))
	}
	return nil
}

type objectDoc struct {
	ID        string               `yaml:"id"`
	Mesh      meshDoc              `yaml:"mesh"`
	Instances int                  `yaml:"instances"`
	Transform *transformDoc        `yaml:"transform"`
	Params    map[string][]float32 `yaml:"params"`
	Material  materialDoc          `yaml:"material"`
}

type meshDoc struct {
	File string `yaml:"file"`
	Name string `yaml:"name"`
}

type transformDoc struct {
	Position *common.Vec3 `yaml:"position"`
	Rotation *common.Vec3 `yaml:"rotation"`
	Scale    *common.Vec3 `yaml:"scale"`
}

type materialDoc struct {
	Passes   map[string]materialPassDoc `yaml:"passes"`
	Textures map[string]textureDoc      `yaml:"textures"`
	Buffers  map[string]bufferRefDoc    `yaml:"buffers"`
}

type materialPassDoc struct {
	Vertex     string `yaml:"vertex"`
	Fragment   string `yaml:"fragment"`
	DepthTest  *bool  `yaml:"depth_test"`
	DepthWrite *bool  `yaml:"depth_write"`
	Blend      string `yaml:"blend"`
}

type textureDoc struct {
	Image   string `yaml:"image"`
	Sampler string `yaml:"sampler"`
}

type bufferRefDoc struct {
	Current string `yaml:"current"`
	Next    string `yaml:"next"`
}

type computeDoc struct {
	ID      string                  `yaml:"id"`
	Shader  string                  `yaml:"shader"`
	Run     string                  `yaml:"run"`
	Buffer  string                  `yaml:"buffer"`
	Buffers map[string]bufferRefDoc `yaml:"buffers"`
	Params  map[string][]float32    `yaml:"params"`
}

type mipDoc struct {
	ID    string `yaml:"id"`
	Image string `yaml:"image"`
}

type cameraDoc struct {
	Position *common.Vec3 `yaml:"position"`
	Target   *common.Vec3 `yaml:"target"`
	Fov      float32      `yaml:"fov"`
	ZNear    float32      `yaml:"z_near"`
	ZFar     float32      `yaml:"z_far"`
}

type lightDoc struct {
	Direction     *common.Vec3 `yaml:"direction"`
	ShadowMapSize float32      `yaml:"shadow_map_size"`
}

func (d *chartDoc) toChart(id, dir string) (*Chart, error) {
	c := &Chart{ID: id, Camera: DefaultCamera, Light: DefaultLight}

	for _, img := range d.Images {
		size, err := img.Size.toRule()
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.ID, err)
		}
		c.Images = append(c.Images, Image{
			ID:         img.ID,
			Format:     PixelFormat(strings.ToLower(img.Format)),
			Size:       size,
			HasMipmaps: img.Mipmaps,
		})
	}

	for _, b := range d.Buffers {
		c.Buffers = append(c.Buffers, DoubleBuffer{ID: b.ID, ItemSizeInVec4: b.ItemSizeInVec4, ItemCount: b.ItemCount})
	}

	for i, s := range d.Steps {
		step, err := s.toStep(dir)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		c.Steps = append(c.Steps, step)
	}

	if d.Camera != nil {
		c.Camera.Position = *common.Coalesce(d.Camera.Position, &c.Camera.Position)
		c.Camera.Target = *common.Coalesce(d.Camera.Target, &c.Camera.Target)
		c.Camera.FieldOfView = common.Coalesce(d.Camera.Fov, c.Camera.FieldOfView)
		c.Camera.ZNear = common.Coalesce(d.Camera.ZNear, c.Camera.ZNear)
		c.Camera.ZFar = common.Coalesce(d.Camera.ZFar, c.Camera.ZFar)
	}
	if d.Light != nil {
		c.Light.Direction = *common.Coalesce(d.Light.Direction, &c.Light.Direction)
		c.Light.ShadowMapSize = common.Coalesce(d.Light.ShadowMapSize, c.Light.ShadowMapSize)
	}

	for _, ctl := range d.Controls {
		c.Controls = append(c.Controls, ctl.toControl())
	}
	return c, nil
}

func (s sizeDoc) toRule() (SizeRule, error) {
	set := 0
	var rule SizeRule
	if s.Canvas != nil {
		set++
		rule = CanvasRelative(*s.Canvas)
	}
	if s.Fixed != nil {
		set++
		if len(s.Fixed) != 2 {
			return rule, errors.New("fixed size needs [width, height]")
		}
		rule = Fixed(s.Fixed[0], s.Fixed[1])
	}
	if s.At4k != nil {
		set++
		if len(s.At4k) != 2 {
			return rule, errors.New("at4k size needs [width, height]")
		}
		rule = At4k(s.At4k[0], s.At4k[1])
	}
	if s.MipOf != "" {
		set++
		rule = MipOf(s.MipOf, s.Level)
	}
	if set != 1 {
		return rule, fmt.Errorf("size must set exactly one of canvas, fixed, at4k, mip_of (got %d)", set)
	}
	return rule, nil
}

func (s stepDoc) toStep(dir string) (Step, error) {
	set := 0
	var step Step
	if s.Draw != nil {
		set++
		d, err := s.Draw.toDraw(dir)
		if err != nil {
			return nil, err
		}
		step = d
	}
	if s.Compute != nil {
		set++
		c, err := s.Compute.toCompute(dir)
		if err != nil {
			return nil, err
		}
		step = c
	}
	if s.GenerateMipLevels != nil {
		set++
		step = &GenerateMipLevels{StepID: s.GenerateMipLevels.ID, Image: s.GenerateMipLevels.Image}
	}
	if set != 1 {
		return nil, fmt.Errorf("a step must be exactly one of draw, compute, generate_mip_levels (got %d)", set)
	}
	return step, nil
}

func (d *drawDoc) toDraw(dir string) (*Draw, error) {
	draw := &Draw{StepID: d.ID}
	for _, p := range d.Passes {
		pass := Pass{ID: p.ID}
		if p.Depth != nil {
			pass.Depth = &Target{Image: p.Depth.Image, Level: p.Depth.Level}
		}
		for _, t := range p.Color {
			pass.Colors = append(pass.Colors, Target{Image: t.Image, Level: t.Level})
		}
		if p.ClearColor != nil {
			col := common.Color(*p.ClearColor)
			pass.ClearColor = &col
		}
		if p.Clear != nil && !*p.Clear {
			pass.Load = true
		}
		draw.Passes = append(draw.Passes, pass)
	}

	for _, o := range d.Objects {
		mat, err := o.Material.toMaterial(dir)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", o.ID, err)
		}
		obj := Object{
			ID:        o.ID,
			Mesh:      MeshRef{File: resolveMeshPath(dir, o.Mesh.File), Name: o.Mesh.Name},
			Instances: common.Coalesce(o.Instances, 1),
			Transform: IdentityTransform,
			Params:    o.Params,
			Material:  mat,
		}
		if o.Transform != nil {
			obj.Transform.Position = *common.Coalesce(o.Transform.Position, &obj.Transform.Position)
			obj.Transform.Rotation = *common.Coalesce(o.Transform.Rotation, &obj.Transform.Rotation)
			obj.Transform.Scale = *common.Coalesce(o.Transform.Scale, &obj.Transform.Scale)
		}
		draw.Objects = append(draw.Objects, obj)
	}
	return draw, nil
}

func (m materialDoc) toMaterial(dir string) (Material, error) {
	mat := Material{
		Passes:   make(map[string]MaterialPass, len(m.Passes)),
		Textures: make(map[string]TextureBinding, len(m.Textures)),
		Buffers:  make(map[string]BufferBinding, len(m.Buffers)),
	}
	for id, p := range m.Passes {
		mp := MaterialPass{
			Vertex:     resolvePath(dir, p.Vertex),
			Fragment:   resolvePath(dir, common.Coalesce(p.Fragment, p.Vertex)),
			DepthTest:  true,
			DepthWrite: true,
			Blend:      BlendMode(common.Coalesce(p.Blend, string(BlendNone))),
		}
		if p.DepthTest != nil {
			mp.DepthTest = *p.DepthTest
		}
		if p.DepthWrite != nil {
			mp.DepthWrite = *p.DepthWrite
		}
		mat.Passes[id] = mp
	}
	for name, t := range m.Textures {
		mat.Textures[name] = TextureBinding{Image: t.Image, Sampler: SamplerMode(common.Coalesce(t.Sampler, string(SamplerRepeat)))}
	}
	for name, b := range m.Buffers {
		bb, err := b.toBinding()
		if err != nil {
			return mat, fmt.Errorf("buffer %q: %w", name, err)
		}
		mat.Buffers[name] = bb
	}
	return mat, nil
}

func (b bufferRefDoc) toBinding() (BufferBinding, error) {
	switch {
	case b.Current != "" && b.Next == "":
		return BufferBinding{Buffer: b.Current, Role: RoleCurrent}, nil
	case b.Next != "" && b.Current == "":
		return BufferBinding{Buffer: b.Next, Role: RoleNext}, nil
	}
	return BufferBinding{}, errors.New("buffer binding must set exactly one of current, next")
}

func (c *computeDoc) toCompute(dir string) (*Compute, error) {
	comp := &Compute{
		StepID:  c.ID,
		Shader:  resolvePath(dir, c.Shader),
		Run:     RunMode(c.Run),
		Buffer:  c.Buffer,
		Buffers: make(map[string]BufferBinding, len(c.Buffers)),
		Params:  c.Params,
	}
	for name, b := range c.Buffers {
		bb, err := b.toBinding()
		if err != nil {
			return nil, fmt.Errorf("compute %q buffer %q: %w", c.ID, name, err)
		}
		comp.Buffers[name] = bb
	}
	return comp, nil
}

func resolveMeshPath(dir, p string) string {
	if p == BuiltinMeshFile {
		return p
	}
	return resolvePath(dir, p)
}

func resolvePath(dir, p string) string {
	if p == "" || strings.HasPrefix(p, BuiltinPrefix) || filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}
