// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package version holds the release tag of the module.
package version

// Tag is the release of the module. It is sent in the User-Agent of uploads
// and printed by "vmprof version".
const Tag = "v0.3.0"
