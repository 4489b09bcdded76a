package manifest

import "github.com/quantmind-br/assets-manifest/internal/utils"

// PublicPath resolves an output filename into the reference stored in the
// manifest. Non-string values are returned unchanged.
func (m *Manifest) PublicPath(filename any) any {
	name, ok := filename.(string)
	if !ok {
		return filename
	}

	switch {
	case m.opts.PublicPathFunc != nil:
		return m.opts.PublicPathFunc(name, m)
	case m.opts.PublicPath != "":
		return utils.JoinURLPath(m.opts.PublicPath, name)
	case m.opts.UseCompilerPublicPath:
		return utils.JoinURLPath(m.compilerPublicPath, name)
	default:
		return name
	}
}
