// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the FSInfo struct, which stores file system metadata.
//
// The file path connects a parsed job back to its physical source on disk, so
// validation errors can report exactly in which file a problematic definition
// is located.
package model

type FSInfo struct {
	FilePath string
}

func NewFSInfo(filePath string) *FSInfo {
	return &FSInfo{
		FilePath: filePath,
	}
}

func (f *FSInfo) String() string {
	if f == nil {
		return ""
	}
	return f.FilePath
}
