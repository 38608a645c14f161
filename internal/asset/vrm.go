package asset

import (
	"encoding/json"
	"fmt"

	"github.com/qmuntal/gltf"
)

// Extension names of the two VRM generations.
const (
	extVRM0 = "VRM"
	extVRM1 = "VRMC_vrm"
)

type vrm0Extension struct {
	Humanoid struct {
		HumanBones []struct {
			Bone string `json:"bone"`
			Node int    `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	BlendShapeMaster struct {
		BlendShapeGroups []struct {
			Name       string `json:"name"`
			PresetName string `json:"presetName"`
		} `json:"blendShapeGroups"`
	} `json:"blendShapeMaster"`
}

type vrm1Extension struct {
	Humanoid struct {
		HumanBones map[string]struct {
			Node int `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	Expressions struct {
		Preset map[string]json.RawMessage `json:"preset"`
	} `json:"expressions"`
}

// humanoid is what a VRM extension tells us: bone name to node index, and
// the names of the expressions it defines.
type humanoid struct {
	source      string
	bones       map[string]int
	expressions []string
}

// readHumanoid extracts the humanoid description from doc, preferring VRM
// 1.0 when both generations are present. ok is false for plain glTF.
func readHumanoid(doc *gltf.Document) (*humanoid, bool, error) {
	if raw, found := doc.Extensions[extVRM1]; found {
		var ext vrm1Extension
		if err := decodeExtension(raw, &ext); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", extVRM1, err)
		}
		h := &humanoid{source: "vrm1", bones: make(map[string]int)}
		for name, b := range ext.Humanoid.HumanBones {
			h.bones[name] = b.Node
		}
		for name := range ext.Expressions.Preset {
			h.expressions = append(h.expressions, name)
		}
		return h, true, nil
	}

	if raw, found := doc.Extensions[extVRM0]; found {
		var ext vrm0Extension
		if err := decodeExtension(raw, &ext); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", extVRM0, err)
		}
		h := &humanoid{source: "vrm0", bones: make(map[string]int)}
		for _, b := range ext.Humanoid.HumanBones {
			h.bones[b.Bone] = b.Node
		}
		for _, g := range ext.BlendShapeMaster.BlendShapeGroups {
			name := g.PresetName
			if name == "" || name == "unknown" {
				name = g.Name
			}
			h.expressions = append(h.expressions, name)
		}
		return h, true, nil
	}

	return nil, false, nil
}

// decodeExtension re-encodes an extension value, which the glTF decoder
// keeps as raw JSON for extensions it does not know, into out.
func decodeExtension(v any, out any) error {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, out)
}

// morphTargetNames collects target names stored in mesh extras.
func morphTargetNames(doc *gltf.Document) []string {
	var names []string
	for _, m := range doc.Meshes {
		extras, ok := m.Extras.(map[string]interface{})
		if !ok {
			continue
		}
		targetNames, ok := extras["targetNames"].([]interface{})
		if !ok {
			continue
		}
		for _, n := range targetNames {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}
