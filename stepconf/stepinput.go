package stepconf

// InputParser ...
type InputParser interface {
	Parse(input interface{}) error
}

type defaultInputParser struct {
	envGetter EnvGetter
}

// NewInputParser ...
func NewInputParser(envGetter EnvGetter) InputParser {
	return defaultInputParser{
		envGetter: envGetter,
	}
}

// Parse ...
func (p defaultInputParser) Parse(input interface{}) error {
	return parse(input, p.envGetter)
}

type defaultsEnvGetter struct {
	envGetter EnvGetter
	defaults  map[string]string
}

// WithDefaults returns an EnvGetter which falls back to defaults for unset or empty variables.
func WithDefaults(envGetter EnvGetter, defaults map[string]string) EnvGetter {
	return defaultsEnvGetter{envGetter: envGetter, defaults: defaults}
}

func (g defaultsEnvGetter) Get(key string) string {
	if value := g.envGetter.Get(key); value != "" {
		return value
	}
	return g.defaults[key]
}
