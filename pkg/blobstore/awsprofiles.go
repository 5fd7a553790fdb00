// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"log"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"gopkg.in/ini.v1"
)

// ListAWSProfiles returns the profile names found in the default shared aws
// config and credentials files.
func ListAWSProfiles() []string {
	return ParseProfiles(config.DefaultSharedConfigFilename(), config.DefaultSharedCredentialsFilename())
}

func ParseProfiles(configFile string, credentialsFile string) []string {
	profiles := make(map[string]struct{})
	f, err := ini.Load(configFile)
	if err != nil {
		log.Printf("[blobstore] error reading aws config file: %v\n", err)
	} else {
		for _, v := range f.Sections() {
			if len(v.Keys()) == 0 {
				continue
			}
			if v.Name() == "default" {
				profiles["default"] = struct{}{}
				continue
			}
			parts := strings.Fields(v.Name())
			if len(parts) == 2 && parts[0] == "profile" {
				profiles[parts[1]] = struct{}{}
			}
		}
	}
	f, err = ini.Load(credentialsFile)
	if err != nil {
		log.Printf("[blobstore] error reading aws credentials file: %v\n", err)
	} else {
		for _, v := range f.Sections() {
			if v.Name() == ini.DefaultSection || len(v.Keys()) == 0 {
				continue
			}
			profiles[v.Name()] = struct{}{}
		}
	}
	rtn := make([]string, 0, len(profiles))
	for name := range profiles {
		rtn = append(rtn, name)
	}
	sort.Strings(rtn)
	return rtn
}
