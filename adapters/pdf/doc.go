// Package reportpdf lays report documents out as paginated PDFs.
//
// A report.Document is rendered to HTML with a pongo2 template (HTMLRenderer)
// and converted to PDF by a pluggable Engine. ChromiumEngine prints through a
// shared headless Chromium and draws the page footer with Chromium's footer
// template; WKHTMLTOPDFEngine shells out to wkhtmltopdf and passes the footer
// as command line options. Layout ties both together and implements
// report.Layout.
package reportpdf
