// Package preflight provides readiness checks for the directories, archive,
// and endpoints the daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll before serving. A failed check aborts
//     startup instead of limping along with a broken data directory.
//   - The CLI "manifold config validate" command uses the same checks to
//     report environment health without starting anything.
package preflight
