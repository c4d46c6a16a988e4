// Package encode renders trees and patch lists as text for people.
package encode
