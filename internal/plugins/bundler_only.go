package plugins

const KindWebpack = "webpack"

// bundlerOnly stands for a plugin that lives inside the webpack config
// (type checkers, css extraction). It has nothing to run on its own.
type bundlerOnly struct {
	name string
}

func newBundlerOnly(spec Spec, _ Env) (Plugin, error) {
	name := spec.Name
	if name == "" {
		name = KindWebpack
	}
	return &bundlerOnly{name: name}, nil
}

func (p *bundlerOnly) Kind() string { return KindWebpack }
func (p *bundlerOnly) Name() string { return p.name }
