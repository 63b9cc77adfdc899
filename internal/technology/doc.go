// Package technology detects third-party technologies in page bodies.
//
// A Technology is a name plus a match function. The built-in set recognises
// Segment.io, Intercom.io and Google Tag Manager by looking for their
// snippet URLs anywhere in the body. Further signatures can be added as
// regular expressions, typically from the configuration file.
package technology
