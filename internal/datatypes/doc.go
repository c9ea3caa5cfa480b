// Package datatypes provides the built-in data-type plugins: Points,
// Clusters and Text. Register adds their factories to a plugin manager;
// every produced plugin owns one storage the data registry views through
// datasets.
package datatypes
