// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads tables of named pipeline and sweep templates.
//
// Tables are YAML by default and HCL when the file name ends in ".hcl". HCL files can read
// environment variables through env.NAME. A built-in table is used when no file is given.
package config
