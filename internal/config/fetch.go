// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/runfarm/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	goGetterPathSeparator   = "//"
	goGetterRefSeparator    = "?"
	goGetterForcedSeparator = "::"
	urlSchemeSeparator      = "://"
	minimumGetterParts      = 3 // scheme, host and path
)

// ErrGetConfigFile is returned when the table cannot be read or downloaded.
var ErrGetConfigFile = errors.New("failed to get pipeline table")

// getFunc downloads a remote table, replaced in tests.
var getFunc = getURL

// Fetch returns the content and file name of the table at src.
// Paths that exist on FS are read directly, everything else goes through go-getter.
func Fetch(ctx context.Context, src string) ([]byte, string, error) {
	if src == "" {
		return nil, "", ErrGetConfigFile
	}

	if isLocal(src) {
		ctxlog.Debug(ctx, "reading local pipeline table", "path", src)

		data, err := afero.ReadFile(FS, src)
		if err != nil {
			return nil, "", errors.Join(ErrGetConfigFile, err)
		}

		return data, filepath.Base(src), nil
	}

	ctxlog.Debug(ctx, "fetching pipeline table", "url", src)

	return getFunc(ctx, src)
}

func isLocal(src string) bool {
	if strings.Contains(src, goGetterForcedSeparator) || strings.Contains(src, urlSchemeSeparator) {
		return false
	}

	ok, err := afero.Exists(FS, src)

	return ok && err == nil
}

// getURL downloads the directory holding the file with go-getter, then reads the file from it.
func getURL(ctx context.Context, url string) ([]byte, string, error) {
	tmpDir, err := os.MkdirTemp("", "runfarm-getter-*")
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string

	// go-getter cannot fetch a single file from a repository, so fetch the directory instead.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, "", errors.Join(ErrGetConfigFile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			return nil, "", fmt.Errorf("%w: invalid URL format: %s", ErrGetConfigFile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, "", errors.Join(ErrGetConfigFile, err)
	}

	return data, fileName, nil
}

// splitFileNameFromGetterURL splits a go-getter URL into the directory URL and the file name.
// A ref query parameter is moved to the directory URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	if before, after, ok := strings.Cut(last, goGetterRefSeparator); ok {
		ref = after
		last = before
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)
	parts[len(parts)-1] = filepath.Dir(last)

	if parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
