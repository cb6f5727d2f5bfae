package wrs

import "github.com/sirupsen/logrus"

// ComponentLogger returns a logrus entry tagged with the component name, so
// every construction/run diagnostic from blockscan, prefixsum,
// prefixpartition, mean, psa, and sample/* carries a consistent "component"
// field. Library code never calls logrus.Fatal* or os.Exit; only the CLI
// entry points exit, through os.Exit.
func ComponentLogger(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
