// Copyright 2025-2026 肖其顿 (XIAO QI DUN)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inkpdf

import "encoding/xml"

// bundleManifestName 页面包清单文件名
const bundleManifestName = "Bundle.xml"

// BundleManifest 页面包清单
// 代表页面包的根节点
type BundleManifest struct {
	XMLName xml.Name    `xml:"Bundle"`
	Version string      `xml:"Version,attr"`
	Title   string      `xml:"Title,omitempty"`
	Author  string      `xml:"Author,omitempty"`
	Pages   BundlePages `xml:"Pages"`
}

// BundlePages 页面列表
type BundlePages struct {
	Page []BundlePage `xml:"Page"`
}

// BundlePage 页面引用
// PhysicalBox 单位为磅, 为空时按图像像素与 ImageDPI 换算
type BundlePage struct {
	ID          string `xml:"ID,attr"`
	BaseLoc     string `xml:"BaseLoc,attr"`
	PhysicalBox string `xml:"PhysicalBox,attr,omitempty"`
}
