// Package asset loads avatar models from glTF and VRM files into a rig.
//
// With humanoid support enabled, bones and expressions come from the VRM
// extension, or from node and morph target names when the file is plain
// glTF. Without it the model is treated as geometry only and only its root
// is exposed for sway.
package asset

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/logging"
	"github.com/normanking/interviewavatar/internal/rig"
)

// Options controls how much of the model the loader tries to use.
type Options struct {
	Humanoid bool // read humanoid bones and expressions
	Fallback bool // expose the scene root when no humanoid is found

	// OnStatus is called once per Load with the outcome.
	OnStatus func(Report)
}

// Loader turns model files into rigs.
type Loader struct {
	opts     Options
	eventBus *bus.EventBus
	logger   *logging.Logger
}

// NewLoader creates a loader. eventBus may be nil.
func NewLoader(opts Options, eventBus *bus.EventBus, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{opts: opts, eventBus: eventBus, logger: logger}
}

// Load reads the model at path. On failure the returned handle is nil and
// the report carries StatusFailed; callers continue without a rig.
func (l *Loader) Load(ctx context.Context, path string) (*rig.Handle, Report, error) {
	h, rep, err := l.load(ctx, path)
	if err != nil {
		rep = Report{Status: StatusFailed, Path: path, Error: err.Error()}
		l.logger.Error("asset", "Model load failed", err, map[string]interface{}{"path": path})
	} else {
		l.logger.Info("asset", "Model loaded", map[string]interface{}{
			"path":     path,
			"status":   string(rep.Status),
			"source":   rep.Source,
			"bones":    len(rep.Bones),
			"channels": len(rep.Channels),
		})
	}
	l.report(rep)
	return h, rep, err
}

func (l *Loader) load(ctx context.Context, path string) (*rig.Handle, Report, error) {
	if path == "" {
		return nil, Report{}, ErrNoPath
	}
	if err := ctx.Err(); err != nil {
		return nil, Report{}, err
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open gltf: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, Report{}, ErrEmptyScene
	}

	nodes := make([]*rig.Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = convertNode(n, i)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	h := rig.NewHandle(name, nil)
	rep := Report{Path: path, Status: StatusFallback}

	if l.opts.Humanoid {
		source, err := bindHumanoid(doc, nodes, h)
		if err != nil {
			return nil, Report{}, err
		}
		rep.Source = source
	}

	for _, b := range h.Bones() {
		rep.Bones = append(rep.Bones, string(b))
	}
	for _, c := range h.Channels() {
		rep.Channels = append(rep.Channels, c.String())
	}
	if _, ok := h.Bone(rig.Head); ok {
		rep.Status = StatusLoaded
	} else if _, ok := h.Bone(rig.Chest); ok {
		rep.Status = StatusLoaded
	} else if _, ok := h.Bone(rig.UpperChest); ok {
		rep.Status = StatusLoaded
	}

	if rep.Status == StatusLoaded || l.opts.Fallback {
		h.SetRoot(sceneRoot(doc, nodes))
	}
	return h, rep, nil
}

// bindHumanoid fills h from the VRM extension when there is one and from
// node and morph target names otherwise. It returns where the data came
// from.
func bindHumanoid(doc *gltf.Document, nodes []*rig.Node, h *rig.Handle) (string, error) {
	hum, ok, err := readHumanoid(doc)
	if err != nil {
		return "", err
	}
	if ok {
		for bone, idx := range hum.bones {
			if !rig.IsHumanoidBone(bone) || idx < 0 || idx >= len(nodes) {
				continue
			}
			h.AddBone(rig.BoneName(bone), nodes[idx])
		}
		for _, expr := range hum.expressions {
			if c, ok := rig.ChannelFromName(expr); ok {
				h.AddChannel(c)
			}
		}
		return hum.source, nil
	}

	for _, n := range nodes {
		if bone, ok := rig.BoneFromNodeName(n.Name); ok {
			if _, taken := h.Bone(bone); !taken {
				h.AddBone(bone, n)
			}
		}
	}
	for _, target := range morphTargetNames(doc) {
		if c, ok := rig.ChannelFromName(target); ok {
			h.AddChannel(c)
		}
	}
	return "node-names", nil
}

// sceneRoot picks the node sway is applied to. A scene with several top
// level nodes gets a synthetic root standing in for the whole scene.
func sceneRoot(doc *gltf.Document, nodes []*rig.Node) *rig.Node {
	var roots []int
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		roots = doc.Scenes[scene].Nodes
	} else {
		roots = topLevelNodes(doc)
	}

	if len(roots) == 1 && roots[0] >= 0 && roots[0] < len(nodes) {
		return nodes[roots[0]]
	}
	return rig.NewNode("scene", -1, mgl64.QuatIdent())
}

// topLevelNodes returns the nodes that are nobody's child.
func topLevelNodes(doc *gltf.Document) []int {
	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !child[i] {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func convertNode(n *gltf.Node, index int) *rig.Node {
	r := n.Rotation
	rest := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
	node := rig.NewNode(n.Name, index, rest)
	node.Translation = mgl64.Vec3{n.Translation[0], n.Translation[1], n.Translation[2]}
	return node
}

func (l *Loader) report(rep Report) {
	if l.opts.OnStatus != nil {
		l.opts.OnStatus(rep)
	}

	var t bus.EventType
	switch rep.Status {
	case StatusLoaded:
		t = bus.EventTypeRigLoaded
	case StatusFallback:
		t = bus.EventTypeRigFallback
	default:
		t = bus.EventTypeRigFailed
	}
	l.eventBus.Publish(bus.Event{Type: t, Data: map[string]any{
		"path":   rep.Path,
		"status": string(rep.Status),
		"error":  rep.Error,
	}})
}
