// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package web embeds the document template and static assets of the people
// demo application.
package web

import (
	"embed"
	"io/fs"
)

// Index is the name of the document template inside FS.
const Index = "index.html"

//go:embed index.html static
var embedded embed.FS

// FS returns the embedded document template and static assets.
func FS() fs.FS {
	return embedded
}
