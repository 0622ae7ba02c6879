/*
Package config loads profiler settings from YAML or JSON files.

# Overview

Config wraps decoded map[string]any data and provides typed accessors that
return a default when a key is missing or has the wrong type. Settings is the
typed view the recorder consumes.

# Usage

	settings, err := config.LoadSettings("sampleprof.yaml")
	if err != nil {
	    log.Fatal(err)
	}

A settings file looks like:

	profiling:
	  endpoint_collection_enabled: true
	  code_hotspots_enabled: true
	  max_frames: 64
	  sampling_period: 10ms
	  flush_interval: 60s
	  buffer_size: 1024
	  store_path: ./samples.db

# Environment

DD_PROFILING_ENDPOINT_COLLECTION_ENABLED and
DD_PROFILING_CODE_HOTSPOTS_COLLECTION_ENABLED override the matching toggles.
*/
package config
