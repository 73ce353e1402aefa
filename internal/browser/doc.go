// Package browser connects to remote browser profiles over the Chrome
// DevTools Protocol and locates page elements without relying on any
// single provider markup or locale.
//
// The Handle interface is what the authorization flow programs
// against; the playwright-backed implementation is the production
// connector, and tests substitute scripted fakes. Element lookup goes
// through Strategy, which walks priority-ordered candidate selectors
// and splits its time budget evenly across them.
package browser
