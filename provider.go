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

package spassr

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"
)

// Mode tells whether the SSR handler serves in development or production
// mode.
type Mode int

const (
	Production Mode = iota
	Development
)

func (m Mode) String() string {
	if m == Development {
		return "development"
	}
	return "production"
}

// Provider supplies the document template to render into. It is chosen once
// at startup.
type Provider interface {
	// Template returns the document template for the specified request.
	Template(r *http.Request) (string, error)
	// Mode returns the mode the provider is meant for.
	Mode() Mode
}

// DevelopmentProvider reads the document template afresh on every request,
// so that edits become visible immediately. A missing or unreadable template
// thus only surfaces when serving a request.
type DevelopmentProvider struct {
	fs    fs.FS
	index string
}

var _ Provider = (*DevelopmentProvider)(nil)

// NewDevelopmentProvider returns a provider reading the index template from
// the specified fs on each request, typically an os.DirFS of the web
// sources.
func NewDevelopmentProvider(fsys fs.FS, index string) *DevelopmentProvider {
	return &DevelopmentProvider{fs: fsys, index: cleanIndex(index)}
}

// Template returns the current contents of the index template.
func (p *DevelopmentProvider) Template(*http.Request) (string, error) {
	contents, err := fs.ReadFile(p.fs, p.index)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

// Mode returns Development.
func (p *DevelopmentProvider) Mode() Mode { return Development }

// ProductionProvider loads the document template only once when created.
type ProductionProvider struct {
	template string
}

var _ Provider = (*ProductionProvider)(nil)

// NewProductionProvider loads the index template from the specified fs,
// typically the embedded web assets. It fails if the template cannot be
// loaded, so the caller can refuse to start instead of serving broken
// documents.
func NewProductionProvider(fsys fs.FS, index string) (*ProductionProvider, error) {
	contents, err := fs.ReadFile(fsys, cleanIndex(index))
	if err != nil {
		return nil, fmt.Errorf("cannot load document template: %w", err)
	}
	return &ProductionProvider{template: string(contents)}, nil
}

// Template returns the template loaded at creation time.
func (p *ProductionProvider) Template(*http.Request) (string, error) {
	return p.template, nil
}

// Mode returns Production.
func (p *ProductionProvider) Mode() Mode { return Production }

// cleanIndex turns the index into an unrooted path, as required by fs.FS,
// sanitizing it in the process.
func cleanIndex(index string) string {
	return path.Clean("/" + index)[1:]
}
