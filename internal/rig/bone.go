package rig

import (
	"strings"
	"unicode"
)

// BoneName is a humanoid bone name as used by VRM.
type BoneName string

const (
	Hips          BoneName = "hips"
	Spine         BoneName = "spine"
	Chest         BoneName = "chest"
	UpperChest    BoneName = "upperChest"
	Neck          BoneName = "neck"
	Head          BoneName = "head"
	LeftShoulder  BoneName = "leftShoulder"
	RightShoulder BoneName = "rightShoulder"
	LeftUpperArm  BoneName = "leftUpperArm"
	RightUpperArm BoneName = "rightUpperArm"
)

// HumanoidBones lists the bones the driver knows how to use.
var HumanoidBones = []BoneName{
	Hips, Spine, Chest, UpperChest, Neck, Head,
	LeftShoulder, RightShoulder, LeftUpperArm, RightUpperArm,
}

// boneAliases maps normalized node names from common exporters (VRoid
// J_Bip_*, Mixamo, plain humanoid names) onto bones.
var boneAliases = map[string]BoneName{
	"hips":          Hips,
	"jbipchips":     Hips,
	"mixamorighips": Hips,

	"spine":           Spine,
	"jbipcspine":      Spine,
	"mixamorigspine":  Spine,
	"chest":           Chest,
	"jbipcchest":      Chest,
	"mixamorigspine1": Chest,
	"upperchest":      UpperChest,
	"jbipcupperchest": UpperChest,
	"mixamorigspine2": UpperChest,

	"neck":          Neck,
	"jbipcneck":     Neck,
	"mixamorigneck": Neck,
	"head":          Head,
	"jbipchead":     Head,
	"mixamorighead": Head,

	"leftshoulder":           LeftShoulder,
	"jbiplshoulder":          LeftShoulder,
	"mixamorigleftshoulder":  LeftShoulder,
	"rightshoulder":          RightShoulder,
	"jbiprshoulder":          RightShoulder,
	"mixamorigrightshoulder": RightShoulder,

	"leftupperarm":      LeftUpperArm,
	"jbiplupperarm":     LeftUpperArm,
	"mixamorigleftarm":  LeftUpperArm,
	"rightupperarm":     RightUpperArm,
	"jbiprupperarm":     RightUpperArm,
	"mixamorigrightarm": RightUpperArm,
}

// BoneFromNodeName guesses the humanoid bone a scene node stands for.
func BoneFromNodeName(name string) (BoneName, bool) {
	b, ok := boneAliases[normalize(name)]
	return b, ok
}

// IsHumanoidBone reports whether name is one of HumanoidBones.
func IsHumanoidBone(name string) bool {
	for _, b := range HumanoidBones {
		if string(b) == name {
			return true
		}
	}
	return false
}

func normalize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
