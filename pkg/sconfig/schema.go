// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package sconfig

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SettingsSchema returns the JSON schema for settings.json.
func SettingsSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&SettingsType{})
	schema.Title = "snipgallery settings"
	barr, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings schema: %v", err)
	}
	return barr, nil
}
