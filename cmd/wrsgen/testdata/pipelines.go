// Package pipelines declares the tilings wrsgen should pin into concrete
// constructors.
package pipelines

//wrsgen:config Default workgroupSize=64 rows=4 splitSize=256 splitWorkgroupSize=64 packWorkgroupSize=64 parallelLookbackDepth=8 maxBlockCount=4096

//wrsgen:config Small workgroupSize=4 rows=1 splitSize=2 splitWorkgroupSize=4 packWorkgroupSize=4 parallelLookbackDepth=4 maxBlockCount=64
