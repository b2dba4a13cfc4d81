package model

import "github.com/amimof/huego"

// HueMetadata is how an accessory presents itself to Hue clients.
type HueMetadata struct {
	Type             string
	ModelID          string
	ManufacturerName string
}

// Light is an accessory as the Hue emulation serves it.
type Light struct {
	ID       string
	Name     string
	UniqueID string
	Type     DeviceType
	State    *huego.State
	Meta     HueMetadata
}

// AccessoryView is the admin listing of one accessory and its current values.
type AccessoryView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       DeviceType     `json:"type"`
	UUID       string         `json:"uuid"`
	Confirming bool           `json:"confirming"`
	State      map[string]any `json:"state"`
}
