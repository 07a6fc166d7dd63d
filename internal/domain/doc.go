// Package domain contains the core entities of the aggregator: source
// descriptors, categories, annotated domain records and per-source
// contribution statistics, together with the error taxonomy shared by the
// pipeline and its collaborators. It has no infrastructure dependencies.
package domain
