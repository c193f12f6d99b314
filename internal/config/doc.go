// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A minimal file only needs client.url:
//
//	client:
//	  url: ws://localhost:5000/dummypi/ws
//	session:
//	  store: file
//	  path: ${HOME}/.databench-sessions.yaml
package config
