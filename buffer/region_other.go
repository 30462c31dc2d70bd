// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

//go:build !unix

package buffer

// On platforms without a shared memory implementation the region is private
// to the process and cannot be attached by readers.

func createRegion(name string, size int, md segmentMeta) (*region, error) {
	return newRegion(make([]byte, size), make([]byte, headBytes), "", true, nil), nil
}

func openRegion(name string) (*region, segmentMeta, error) {
	return nil, segmentMeta{}, ErrNotSupported
}
