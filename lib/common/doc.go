// Package common provides the configuration and logging shared by the store and the command line tool.
package common
