package crop

import "strings"

// CropDefinition is a named crop configured for an image property. Coordinates
// is nil when editor never saved a crop for this alias.
type CropDefinition struct {
	Alias       string       `json:"alias" yaml:"alias"`
	Width       int          `json:"width" yaml:"width"`
	Height      int          `json:"height" yaml:"height"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// ImageCropperValue is the value stored by an image cropper property: source
// URL plus focal point and crops chosen by editor.
type ImageCropperValue struct {
	Src        string           `json:"src" yaml:"src"`
	FocalPoint *FocalPoint      `json:"focal_point,omitempty" yaml:"focal_point,omitempty"`
	Crops      []CropDefinition `json:"crops,omitempty" yaml:"crops,omitempty"`
}

// GetCrop finds crop definition by alias, ignoring case.
func (v ImageCropperValue) GetCrop(alias string) (CropDefinition, bool) {
	for _, crop := range v.Crops {
		if strings.EqualFold(crop.Alias, alias) {
			return crop, true
		}
	}
	return CropDefinition{}, false
}
