// Copyright 2022 Harald Albrecht.
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

package spassr

import (
	"errors"
	"io"
	"io/fs"
	"net/http"

	"github.com/thediveo/spassr/render"
)

// NormalizedHttpError writes a normalized HTTP error message and HTTP status
// code based on the specified error, but not leaking any interesting internal
// server details from this specified error.
func NormalizedHttpError(w http.ResponseWriter, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, fs.ErrPermission) {
		http.Error(w, "403 Forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
}

// RenderFailure writes a plain text 500 response detailing the failure to
// render a document. In development mode, the stack of a failed component is
// included too.
func RenderFailure(w http.ResponseWriter, err error, mode Mode) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, err.Error()+"\n")
	if mode != Development {
		return
	}
	var rerr *render.Error
	if errors.As(err, &rerr) && len(rerr.Stack) > 0 {
		_, _ = w.Write(rerr.Stack)
	}
}
