package logsink

import (
	"github.com/sirupsen/logrus"
)

// Logger builds the run's logrus logger on top of s.
func Logger(s *Sink, level string) (*logrus.Logger, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		if lvl, err = logrus.ParseLevel(level); err != nil {
			return nil, err
		}
	}
	l := logrus.New()
	l.SetOutput(s)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return l, nil
}
