// Package compiler holds the pieces of module compilation that do not depend on plugins:
// discovering sources, deriving module keys, decoding text and lowering TypeScript/JSX
// to browser-ready JavaScript with esbuild.
package compiler
