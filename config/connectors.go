package config

import "strings"

// connectorSets is the fixed hardware connector list per adapter model. An
// adapter cannot be provisioned for a model that is not listed here.
var connectorSets = map[string][]string{
	"MODELO_1": {
		"ZH-MINI-HD-2",
		"ZH-MINI-FHD-1-68-1",
		"ZH-MINI-HD-1",
		"ZH-MINI-FHD-1-51-1",
	},
	"MODELO_2": {
		"ZH-MINI-HD-2",
		"ZH-MINI-FHD-1-68-1",
		"ZH-MINI-HD-1",
		"ZH-MINI-FHD-1-51-1",
	},
	"ADA20100_01": {
		"ZH-MINI-HD-2",
		"ZH-MINI-HD-4",
		"ZH-MINI-FHD-1-68-1",
		"ZH-MINI-HD-1",
		"ZH-MINI-HD-3",
		"ZH-MINI-FHD-1-51-1",
	},
	"ADA20100_02": {
		"ZH-MINI-FHD-2-68-1",
		"ZH-MINI-FHD-2-60-1",
		"ZH-MINI-HD-2",
	},
	"CSTH-100/ZH-S20": {
		"ZH-MINI-HD-2",
		"ZH-MINI-HD-4",
		"ZH-MINI-FHD-1-68-1",
		"ZH-MINI-HD-1",
		"ZH-MINI-HD-3",
		"ZH-MINI-FHD-1-51-1",
		"ZH-MINI-FHD-2-68-1",
		"ZH-MINI-FHD-2-60-1",
	},
	// Converters carry a single dedicated connector.
	"11477": {"CONVERTER_11477"},
	"11479": {"CONVERTER_11479"},
}

// sharedPinModels lists the adapter models whose paired connectors sit on a
// shared physical pin assembly. Pairing propagation only applies to these;
// converters and other models have fully independent connectors.
var sharedPinModels = map[string]bool{
	"ADA20100_01":     true,
	"ADA20100_02":     true,
	"CSTH-100/ZH-S20": true,
}

// pairedConnectors maps a connector name to the name it is hardware paired
// with on the same adapter. HD-2 shares pins with HD-4, HD-1 with HD-3.
var pairedConnectors = map[string]string{
	"ZH-MINI-HD-2": "ZH-MINI-HD-4",
	"ZH-MINI-HD-4": "ZH-MINI-HD-2",
	"ZH-MINI-HD-1": "ZH-MINI-HD-3",
	"ZH-MINI-HD-3": "ZH-MINI-HD-1",
}

// ConnectorSet returns the ordered connector list for an adapter model.
// Unknown models yield an empty list.
func ConnectorSet(model string) []string {
	set := connectorSets[strings.ToUpper(model)]
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// PairedConnector returns the hardware-paired connector name for the given
// connector on the given adapter model. It returns false for models outside
// the shared-pin whitelist and for unpaired connectors.
func PairedConnector(model, connector string) (string, bool) {
	if !sharedPinModels[strings.ToUpper(model)] {
		return "", false
	}
	paired, ok := pairedConnectors[connector]
	return paired, ok
}

// SharedPinModel reports whether pairing propagation applies to a model.
func SharedPinModel(model string) bool {
	return sharedPinModels[strings.ToUpper(model)]
}

// ModelsWithConnector returns the adapter models whose connector set contains
// the given connector name.
func ModelsWithConnector(name string) []string {
	var models []string
	for model, set := range connectorSets {
		for _, c := range set {
			if c == name {
				models = append(models, model)
				break
			}
		}
	}
	return models
}

// AvailableModels returns all known adapter models.
func AvailableModels() []string {
	models := make([]string, 0, len(connectorSets))
	for model := range connectorSets {
		models = append(models, model)
	}
	return models
}
