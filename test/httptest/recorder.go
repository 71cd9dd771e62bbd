// Copyright 2023 Harald Albrecht.
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

/*
Package httptest wraps the standard library's httptest.ResponseRecorder in order
to fail any test doing superfluous response.WriteHeader calls, and adds a few
conveniences for inspecting server-side rendered documents.
*/
package httptest

import (
	"net/http"
	stdhttptest "net/http/httptest"
	"strings"

	"github.com/PuerkitoBio/goquery"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// WrappedResponseRecorder wraps httptest.ResponseRecorder in order to fail
// tests doing superfluous WriteHeader calls.
type WrappedResponseRecorder struct {
	*stdhttptest.ResponseRecorder
	wroteHeader bool
}

// NewRecorder returns a new test response recorder detecting superfluous
// WriteHeader calls.
func NewRecorder() *WrappedResponseRecorder {
	return &WrappedResponseRecorder{
		ResponseRecorder: stdhttptest.NewRecorder(),
	}
}

// WriteHeader implements http.ResponseWriter, failing tests that do superfluous
// WriteHeader calls.
func (w *WrappedResponseRecorder) WriteHeader(code int) {
	GinkgoHelper()
	Expect(w.wroteHeader).To(BeFalse(), "superfluous response.WriteHeader call")
	w.wroteHeader = true
	w.ResponseRecorder.WriteHeader(code)
}

// Document parses the recorded body as an HTML document, failing the test if
// the response isn't a successfully served HTML document.
func (w *WrappedResponseRecorder) Document() *goquery.Document {
	GinkgoHelper()
	Expect(w.Code).To(Equal(http.StatusOK))
	Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/html"))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	Expect(err).NotTo(HaveOccurred())
	return doc
}

// Location returns the redirect target of the recorded response, failing the
// test if the response isn't a permanent redirect.
func (w *WrappedResponseRecorder) Location() string {
	GinkgoHelper()
	Expect(w.Code).To(Equal(http.StatusMovedPermanently))
	return w.Header().Get("Location")
}
