/*
Package config loads named gate definitions from YAML.

	metrics:
	  enabled: true
	  namespace: myapp
	gates:
	  github:
	    interval: 500ms      # or 0.5, a number of seconds
	    concurrency: 2
	    immediate_first: true

Placeholders of the form ${VAR} are replaced from the environment before the
document is parsed. A variable that is set but empty is substituted with a
warning; an unset variable fails the load. LoadDotEnv pulls variables from
.env files first, skipping files that do not exist.

	_ = config.LoadDotEnv(logger)
	f, err := config.Load("gates.yaml", logger)
	if err != nil {
		return err
	}
	gates, err := f.BuildGates(logger)

When metrics are enabled every gate is wrapped with gate.Instrument.
*/
package config
